package widget

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/chatwidget/internal/logger"
	"github.com/chatwidget/internal/model"
	"github.com/chatwidget/internal/widgetconfig"
)

// Script tag attributes of the embed snippet.
const (
	AttrWidgetID    = "data-widget-id"
	AttrAPIURL      = "data-api-url"
	AttrContainerID = "data-container-id"
	AttrConfig      = "data-config"
	AttrSellerID    = "data-seller-id"
)

// ParseAttributes reads the script tag attributes and the page's window.chatWidgetConfig.
// data-widget-id is required. Malformed data-config or window config is logged and ignored.
// The window config is applied after data-config, so it wins on conflicting keys.
func ParseAttributes(attrs map[string]string, windowConfig json.RawMessage) (Options, error) {
	id := strings.TrimSpace(attrs[AttrWidgetID])
	if id == "" {
		logger.Errorf("embed: %s attribute is required", AttrWidgetID)
		return Options{}, ErrMissingWidgetID
	}
	opts := Options{
		WidgetID:    id,
		APIBaseURL:  strings.TrimRight(strings.TrimSpace(attrs[AttrAPIURL]), "/"),
		ContainerID: strings.TrimSpace(attrs[AttrContainerID]),
		SellerID:    strings.TrimSpace(attrs[AttrSellerID]),
	}

	script, err := widgetconfig.DecodePatch([]byte(attrs[AttrConfig]))
	if err != nil {
		logger.Errorf("embed: %s ignored: %v", AttrConfig, err)
		script = nil
	}
	window, err := widgetconfig.DecodePatch(windowConfig)
	if err != nil {
		logger.Errorf("embed: window.chatWidgetConfig ignored: %v", err)
		window = nil
	}
	opts.InlineConfig = mergePatches(script, window)
	return opts, nil
}

// mergePatches overlays b on a at the JSON level, keeping keys only a sets.
func mergePatches(a, b *model.ConfigPatch) *model.ConfigPatch {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	ra, errA := json.Marshal(a)
	rb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return b
	}
	var ma, mb map[string]any
	if json.Unmarshal(ra, &ma) != nil || json.Unmarshal(rb, &mb) != nil {
		return b
	}
	raw, err := json.Marshal(deepMerge(ma, mb))
	if err != nil {
		return b
	}
	out, err := widgetconfig.DecodePatch(raw)
	if err != nil {
		return b
	}
	return out
}

func deepMerge(dst, src map[string]any) map[string]any {
	for k, v := range src {
		sub, ok := v.(map[string]any)
		if cur, isMap := dst[k].(map[string]any); ok && isMap {
			dst[k] = deepMerge(cur, sub)
			continue
		}
		dst[k] = v
	}
	return dst
}

type EmbedOptions struct {
	ScriptURL   string
	WidgetID    string
	APIBaseURL  string
	ContainerID string
}

// EmbedSnippet renders the "get embed code" output: a container, the config assigned to
// window.chatWidgetConfig and the script tag.
func EmbedSnippet(cfg model.ChatConfig, eo EmbedOptions) (string, error) {
	raw, err := json.MarshalIndent(cfg, "  ", "  ")
	if err != nil {
		return "", fmt.Errorf("embed snippet: %w", err)
	}
	// keep "</script>" inside string values from closing the tag
	raw = bytes.ReplaceAll(raw, []byte("</"), []byte(`<\/`))

	container := eo.ContainerID
	if container == "" {
		container = "chat-widget-container"
	}
	script := eo.ScriptURL
	if script == "" {
		script = "https://your-domain.com/chat-widget.js"
	}

	var b strings.Builder
	b.WriteString("<!-- Chat Widget Embed Code -->\n")
	fmt.Fprintf(&b, "<div id=\"%s\"></div>\n", html.EscapeString(container))
	b.WriteString("<script>\n  window.chatWidgetConfig = ")
	b.Write(raw)
	b.WriteString(";\n</script>\n")
	fmt.Fprintf(&b, "<script src=\"%s\"", html.EscapeString(script))
	if eo.WidgetID != "" {
		fmt.Fprintf(&b, " %s=\"%s\"", AttrWidgetID, html.EscapeString(eo.WidgetID))
	}
	if eo.APIBaseURL != "" {
		fmt.Fprintf(&b, " %s=\"%s\"", AttrAPIURL, html.EscapeString(eo.APIBaseURL))
	}
	if eo.ContainerID != "" {
		fmt.Fprintf(&b, " %s=\"%s\"", AttrContainerID, html.EscapeString(eo.ContainerID))
	}
	b.WriteString("></script>")
	return b.String(), nil
}
