package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chatwidget/internal/config"
	"github.com/chatwidget/internal/engine"
	"github.com/chatwidget/internal/logger"
	"github.com/chatwidget/internal/model"
	"github.com/chatwidget/internal/resolver"
	"github.com/chatwidget/internal/storage/memory"
	"github.com/chatwidget/internal/widget"
	"github.com/chatwidget/internal/widgetconfig"
)

func main() {
	logger.SetPrefix("widget")
	widgetID := flag.String("widget-id", "", "data-widget-id (required)")
	apiURL := flag.String("api-url", "", "data-api-url")
	containerID := flag.String("container-id", "", "data-container-id")
	dataConfig := flag.String("data-config", "", "data-config JSON")
	windowConfig := flag.String("window-config", "", "window.chatWidgetConfig JSON")
	sellerID := flag.String("seller-id", "", "data-seller-id (enables the live socket)")
	storedConfig := flag.String("stored-config", "", "saved preview config file (lowest precedence inline config)")
	flag.Parse()

	runtime := config.Widget()
	if runtime.APIBaseURL != "" && *apiURL == "" {
		*apiURL = runtime.APIBaseURL
	}

	opts, err := widget.ParseAttributes(map[string]string{
		widget.AttrWidgetID:    *widgetID,
		widget.AttrAPIURL:      *apiURL,
		widget.AttrContainerID: *containerID,
		widget.AttrConfig:      *dataConfig,
		widget.AttrSellerID:    *sellerID,
	}, json.RawMessage(*windowConfig))
	if err != nil {
		logger.Flush(time.Second)
		fmt.Fprintln(os.Stderr, "usage: widget -widget-id ID [-api-url URL] [-data-config JSON] [-window-config JSON]")
		os.Exit(2)
	}

	if *storedConfig != "" {
		opts.InlineConfig = withStored(*storedConfig, opts.InlineConfig)
	}

	out := &printer{w: os.Stdout}
	ctx, cancel := context.WithTimeout(context.Background(), runtime.ConfigFetchTimeout+time.Second)
	w, err := widget.Mount(ctx, opts, widget.Deps{
		Resolver: resolver.New(memory.New(), resolver.WithFetchTimeout(runtime.ConfigFetchTimeout)),
		Runtime:  runtime,
		OnEvent:  out.event,
		OnChange: out.snapshot,
	})
	cancel()
	if err != nil {
		logger.Errorf("mount: %v", err)
		logger.Flush(time.Second)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	lines := make(chan string)
	done := make(chan struct{})
	go readLines(os.Stdin, lines, done)

	fmt.Fprintf(os.Stdout, "widget %s ready in #%s; /open, /close, /info name=.. email=.. phone=.., /dismiss, /reconnect, /config JSON, /quit\n",
		opts.WidgetID, opts.Container())
loop:
	for {
		select {
		case <-quit:
			break loop
		case line, ok := <-lines:
			if !ok || command(w, line) {
				break loop
			}
		}
	}
	close(done)

	w.Destroy()
	w.Wait()
	logger.Flush(2 * time.Second)
}

// readLines forwards lines until r ends or done is closed. A Scan blocked on r only
// returns with the next line or EOF.
func readLines(r io.Reader, out chan<- string, done <-chan struct{}) {
	defer close(out)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		select {
		case out <- sc.Text():
		case <-done:
			return
		}
	}
}

// command runs one stdin line and reports whether to quit.
func command(w *widget.Widget, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	name, arg, _ := strings.Cut(line, " ")
	switch name {
	case "/quit":
		return true
	case "/open":
		w.Open()
	case "/close":
		w.Close()
	case "/dismiss":
		w.DismissPrompt()
	case "/reconnect":
		report(w.Reconnect())
	case "/info":
		if errs := w.SubmitUserInfo(parseInfo(arg)); len(errs) > 0 {
			fmt.Fprintln(os.Stdout, "form:", errs.String())
		}
	case "/config":
		patch, err := widgetconfig.DecodePatch([]byte(arg))
		if err != nil {
			report(err)
			return false
		}
		_, err = w.UpdateConfig(context.Background(), patch)
		report(err)
	default:
		_, err := w.Send(line)
		report(err)
	}
	return false
}

// parseInfo reads "name=Ann Lee email=ann@example.com": a value runs until the next key=.
func parseInfo(arg string) model.UserInfo {
	var info model.UserInfo
	var cur *string
	for _, tok := range strings.Fields(arg) {
		if k, v, ok := strings.Cut(tok, "="); ok {
			switch model.RequiredField(k) {
			case model.FieldName:
				cur = &info.Name
			case model.FieldEmail:
				cur = &info.Email
			case model.FieldPhone:
				cur = &info.Phone
			default:
				cur = nil
				continue
			}
			*cur = v
			continue
		}
		if cur != nil {
			*cur += " " + tok
		}
	}
	return info
}

func report(err error) {
	switch {
	case err == nil:
	case errors.Is(err, engine.ErrEmptyMessage):
	default:
		fmt.Fprintln(os.Stdout, "!", err)
	}
}

// withStored puts a saved preview config under the embed's inline config. An unreadable or
// malformed file only costs the stored values.
func withStored(path string, inline *model.ConfigPatch) *model.ConfigPatch {
	raw, err := os.ReadFile(path)
	if err != nil {
		logger.Errorf("stored config ignored: %v", err)
		return inline
	}
	stored, err := widgetconfig.DecodeStored(raw)
	if err != nil {
		logger.Errorf("stored config %s malformed, using defaults: %v", path, err)
	}
	return widgetconfig.PatchFromConfig(widgetconfig.Merge(stored, inline))
}
