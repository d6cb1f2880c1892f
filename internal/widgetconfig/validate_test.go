package widgetconfig

import (
	"math/rand"
	"testing"

	"github.com/chatwidget/internal/model"
)

func TestValidateRequiredFields(t *testing.T) {
	tests := []struct {
		in   model.RequiredFields
		want bool
	}{
		{model.RequiredFields{}, false},
		{model.RequiredFields{Name: true}, false},
		{model.RequiredFields{Name: true, Phone: true}, true},
		{model.RequiredFields{Name: true, Email: true, Phone: true}, true},
	}
	for _, tt := range tests {
		if got := ValidateRequiredFields(tt.in); got != tt.want {
			t.Errorf("ValidateRequiredFields(%+v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestApplyRequiredFieldChange(t *testing.T) {
	cfg := Default()

	// name+email -> dropping email would leave one field
	got, applied := ApplyRequiredFieldChange(cfg, model.FieldEmail, false)
	if applied || got.RequiredFields != cfg.RequiredFields {
		t.Fatalf("drop below minimum applied: %+v", got.RequiredFields)
	}
	if got.RequireUserInfo {
		t.Fatal("refused change must not touch requireUserInfo")
	}

	got, applied = ApplyRequiredFieldChange(cfg, model.FieldPhone, true)
	if !applied || !got.RequiredFields.Phone {
		t.Fatal("turning phone on was refused")
	}
	if !got.RequireUserInfo {
		t.Fatal("committed change must make the gate mandatory")
	}

	got, applied = ApplyRequiredFieldChange(got, model.FieldEmail, false)
	if !applied || got.RequiredFields != (model.RequiredFields{Name: true, Phone: true}) {
		t.Fatalf("3 -> 2 refused: %+v", got.RequiredFields)
	}

	if _, applied := ApplyRequiredFieldChange(cfg, model.RequiredField("fax"), true); applied {
		t.Fatal("unknown field applied")
	}
}

func TestApplyRequiredFieldChangeTurningOnBelowMinimum(t *testing.T) {
	cfg := Default()
	cfg.RequiredFields = model.RequiredFields{}
	got, applied := ApplyRequiredFieldChange(cfg, model.FieldName, true)
	if !applied || !got.RequiredFields.Name {
		t.Fatal("a field being turned on is always accepted")
	}
}

func TestRequiredFieldsNeverBelowMinimum(t *testing.T) {
	fields := []model.RequiredField{model.FieldName, model.FieldEmail, model.FieldPhone}
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 50; run++ {
		cfg := Default()
		cfg, _ = ApplyRequiredFieldChange(cfg, model.FieldName, true)
		for step := 0; step < 40; step++ {
			f := fields[rng.Intn(len(fields))]
			cfg, _ = ApplyRequiredFieldChange(cfg, f, rng.Intn(2) == 0)
			if cfg.RequireUserInfo && cfg.RequiredFields.Count() < MinRequiredFields {
				t.Fatalf("run %d step %d: %+v", run, step, cfg.RequiredFields)
			}
		}
	}
}

func TestNormalize(t *testing.T) {
	c := Default()
	c.ThemeColor = "purple"
	c.Position = "middle"
	c.ChatIcon = "rocket"
	c.PromptStyle = "toast"
	c.AgentType = "bot"
	c.CustomAgentConfig.Headers = nil
	c.BusinessHours.Timezone = ""
	c.DisconnectSettings.InactivityTimeoutMinutes = 0
	c.RequireUserInfo = true
	c.RequiredFields = model.RequiredFields{Phone: true}

	got := Normalize(c)
	def := Default()
	if got.ThemeColor != def.ThemeColor || got.Position != def.Position || got.ChatIcon != def.ChatIcon ||
		got.PromptStyle != def.PromptStyle || got.AgentType != def.AgentType {
		t.Errorf("enums not reset: %+v", got)
	}
	if got.CustomAgentConfig.Headers == nil {
		t.Error("nil headers kept")
	}
	if got.BusinessHours.Timezone != DefaultTimezone {
		t.Errorf("timezone = %q", got.BusinessHours.Timezone)
	}
	if got.DisconnectSettings.InactivityTimeoutMinutes != 1 {
		t.Errorf("inactivity = %d", got.DisconnectSettings.InactivityTimeoutMinutes)
	}
	if got.RequiredFields != (model.RequiredFields{Name: true, Phone: true}) {
		t.Errorf("requiredFields = %+v", got.RequiredFields)
	}

	c = Default()
	c.ThemeColor = "#ABC"
	if Normalize(c).ThemeColor != "#ABC" {
		t.Error("short hex rejected")
	}
}
