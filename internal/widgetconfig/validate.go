package widgetconfig

import (
	"regexp"

	"github.com/chatwidget/internal/model"
)

var hexColorRe = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ValidateRequiredFields reports whether at least MinRequiredFields entries are set.
func ValidateRequiredFields(f model.RequiredFields) bool {
	return f.Count() >= MinRequiredFields
}

// ApplyRequiredFieldChange is the builder's toggle handler. A change that would leave fewer
// than MinRequiredFields required entries is refused (cfg returned as is, applied=false) unless
// it turns the field on. A committed change makes the gate mandatory.
func ApplyRequiredFieldChange(cfg model.ChatConfig, field model.RequiredField, checked bool) (model.ChatConfig, bool) {
	next, ok := cfg.RequiredFields.With(field, checked)
	if !ok {
		return cfg, false
	}
	if !ValidateRequiredFields(next) && !checked {
		return cfg, false
	}
	out := cfg.Clone()
	out.RequireUserInfo = true
	out.RequiredFields = next
	return out, true
}

// Normalize brings out-of-range values back into the documented domain:
// unknown enums fall back to defaults, the inactivity timeout is at least
// MinInactivityTimeoutMinutes, and a mandatory gate keeps MinRequiredFields fields.
func Normalize(c model.ChatConfig) model.ChatConfig {
	def := Default()

	if !hexColorRe.MatchString(c.ThemeColor) {
		c.ThemeColor = def.ThemeColor
	}
	if !c.Position.Valid() {
		c.Position = def.Position
	}
	if !c.ChatIcon.Valid() {
		c.ChatIcon = def.ChatIcon
	}
	if !c.PromptStyle.Valid() {
		c.PromptStyle = def.PromptStyle
	}
	if !c.AgentType.Valid() {
		c.AgentType = def.AgentType
	}
	if c.CustomAgentConfig.Headers == nil {
		c.CustomAgentConfig.Headers = map[string]string{}
	}
	if c.BusinessHours.Timezone == "" {
		c.BusinessHours.Timezone = DefaultTimezone
	}
	if c.DisconnectSettings.InactivityTimeoutMinutes < MinInactivityTimeoutMinutes {
		c.DisconnectSettings.InactivityTimeoutMinutes = MinInactivityTimeoutMinutes
	}
	if c.RequireUserInfo {
		for _, f := range []model.RequiredField{model.FieldName, model.FieldEmail, model.FieldPhone} {
			if ValidateRequiredFields(c.RequiredFields) {
				break
			}
			c.RequiredFields, _ = c.RequiredFields.With(f, true)
		}
	}
	return c
}
