package widgetconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chatwidget/internal/model"
)

var ErrInvalidPatch = errors.New("invalid config patch")

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

// Merge applies patch over base. Top-level fields are replaced, nested groups are merged
// leaf by leaf, so a patch touching businessHours.enabled keeps the schedule. base is not modified.
func Merge(base model.ChatConfig, patch *model.ConfigPatch) model.ChatConfig {
	out := base.Clone()
	if patch == nil {
		return out
	}

	setString(&out.ThemeColor, patch.ThemeColor)
	setString(&out.CompanyName, patch.CompanyName)
	setString(&out.AgentName, patch.AgentName)
	setString(&out.CompanyLogo, patch.CompanyLogo)

	setString(&out.WelcomeMessage, patch.WelcomeMessage)
	setString(&out.WelcomeMessageIcon, patch.WelcomeMessageIcon)
	setString(&out.FallbackMessage, patch.FallbackMessage)

	if patch.Position != nil {
		out.Position = *patch.Position
	}
	if patch.ChatIcon != nil {
		out.ChatIcon = *patch.ChatIcon
	}
	setString(&out.CustomChatIconURL, patch.CustomChatIconURL)
	setBool(&out.ShowChatPrompt, patch.ShowChatPrompt)
	setString(&out.ChatPromptMessage, patch.ChatPromptMessage)
	if patch.PromptStyle != nil {
		out.PromptStyle = *patch.PromptStyle
	}
	setBool(&out.ShowUserStatus, patch.ShowUserStatus)
	setBool(&out.ShowMessageStatus, patch.ShowMessageStatus)
	setBool(&out.ShowAgentIcon, patch.ShowAgentIcon)

	setBool(&out.RequireUserInfo, patch.RequireUserInfo)
	if rf := patch.RequiredFields; rf != nil {
		setBool(&out.RequiredFields.Name, rf.Name)
		setBool(&out.RequiredFields.Email, rf.Email)
		setBool(&out.RequiredFields.Phone, rf.Phone)
	}
	setString(&out.UserInfoMessage, patch.UserInfoMessage)

	if patch.AgentType != nil {
		out.AgentType = *patch.AgentType
	}
	if oa := patch.OpenAIConfig; oa != nil {
		setString(&out.OpenAIConfig.APIKey, oa.APIKey)
		setString(&out.OpenAIConfig.Model, oa.Model)
		setString(&out.OpenAIConfig.SystemPrompt, oa.SystemPrompt)
	}
	if ca := patch.CustomAgentConfig; ca != nil {
		setString(&out.CustomAgentConfig.WebhookURL, ca.WebhookURL)
		if len(ca.Headers) > 0 && out.CustomAgentConfig.Headers == nil {
			out.CustomAgentConfig.Headers = make(map[string]string, len(ca.Headers))
		}
		for k, v := range ca.Headers {
			if v == "" {
				delete(out.CustomAgentConfig.Headers, k)
				continue
			}
			out.CustomAgentConfig.Headers[k] = v
		}
	}

	if bh := patch.BusinessHours; bh != nil {
		setBool(&out.BusinessHours.Enabled, bh.Enabled)
		setString(&out.BusinessHours.Timezone, bh.Timezone)
		setString(&out.BusinessHours.OutsideHoursMessage, bh.OutsideHoursMessage)
		if s := bh.Schedule; s != nil {
			mergeDay(&out.BusinessHours.Schedule.Monday, s.Monday)
			mergeDay(&out.BusinessHours.Schedule.Tuesday, s.Tuesday)
			mergeDay(&out.BusinessHours.Schedule.Wednesday, s.Wednesday)
			mergeDay(&out.BusinessHours.Schedule.Thursday, s.Thursday)
			mergeDay(&out.BusinessHours.Schedule.Friday, s.Friday)
			mergeDay(&out.BusinessHours.Schedule.Saturday, s.Saturday)
			mergeDay(&out.BusinessHours.Schedule.Sunday, s.Sunday)
		}
	}

	if ds := patch.DisconnectSettings; ds != nil {
		setBool(&out.DisconnectSettings.Enabled, ds.Enabled)
		if ds.InactivityTimeoutMinutes != nil {
			out.DisconnectSettings.InactivityTimeoutMinutes = *ds.InactivityTimeoutMinutes
		}
		setString(&out.DisconnectSettings.DisconnectMessage, ds.DisconnectMessage)
		setBool(&out.DisconnectSettings.ShowReconnectButton, ds.ShowReconnectButton)
	}

	return Normalize(out)
}

func mergeDay(dst *model.DaySchedule, p *model.DaySchedulePatch) {
	if p == nil {
		return
	}
	setBool(&dst.Enabled, p.Enabled)
	setString(&dst.StartTime, p.StartTime)
	setString(&dst.EndTime, p.EndTime)
}

// MergeAll folds patches over base left to right; later patches win.
func MergeAll(base model.ChatConfig, patches ...*model.ConfigPatch) model.ChatConfig {
	out := base
	for _, p := range patches {
		out = Merge(out, p)
	}
	return out
}

// DecodePatch parses a JSON object into a patch. Unknown keys are ignored, as the host page
// may carry keys for other widget versions.
func DecodePatch(raw []byte) (*model.ConfigPatch, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var p model.ConfigPatch
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	return &p, nil
}

// PatchFromConfig turns a full config into a patch that sets every field, empty values included.
// Headers still merge key by key, so applying it over a base with extra headers keeps them;
// replace the config wholesale when those must go too.
func PatchFromConfig(c model.ChatConfig) *model.ConfigPatch {
	c = c.Clone()
	bh := c.BusinessHours
	ds := c.DisconnectSettings
	return &model.ConfigPatch{
		ThemeColor:  &c.ThemeColor,
		CompanyName: &c.CompanyName,
		AgentName:   &c.AgentName,
		CompanyLogo: &c.CompanyLogo,

		WelcomeMessage:     &c.WelcomeMessage,
		WelcomeMessageIcon: &c.WelcomeMessageIcon,
		FallbackMessage:    &c.FallbackMessage,

		Position:          &c.Position,
		ChatIcon:          &c.ChatIcon,
		CustomChatIconURL: &c.CustomChatIconURL,
		ShowChatPrompt:    &c.ShowChatPrompt,
		ChatPromptMessage: &c.ChatPromptMessage,
		PromptStyle:       &c.PromptStyle,
		ShowUserStatus:    &c.ShowUserStatus,
		ShowMessageStatus: &c.ShowMessageStatus,
		ShowAgentIcon:     &c.ShowAgentIcon,

		RequireUserInfo: &c.RequireUserInfo,
		RequiredFields: &model.RequiredFieldsPatch{
			Name:  &c.RequiredFields.Name,
			Email: &c.RequiredFields.Email,
			Phone: &c.RequiredFields.Phone,
		},
		UserInfoMessage: &c.UserInfoMessage,

		AgentType: &c.AgentType,
		OpenAIConfig: &model.OpenAIConfigPatch{
			APIKey:       &c.OpenAIConfig.APIKey,
			Model:        &c.OpenAIConfig.Model,
			SystemPrompt: &c.OpenAIConfig.SystemPrompt,
		},
		CustomAgentConfig: &model.CustomAgentConfigPatch{
			WebhookURL: &c.CustomAgentConfig.WebhookURL,
			Headers:    c.CustomAgentConfig.Headers,
		},

		BusinessHours: &model.BusinessHoursPatch{
			Enabled:             &bh.Enabled,
			Timezone:            &bh.Timezone,
			OutsideHoursMessage: &bh.OutsideHoursMessage,
			Schedule: &model.WeekSchedulePatch{
				Monday:    dayPatch(bh.Schedule.Monday),
				Tuesday:   dayPatch(bh.Schedule.Tuesday),
				Wednesday: dayPatch(bh.Schedule.Wednesday),
				Thursday:  dayPatch(bh.Schedule.Thursday),
				Friday:    dayPatch(bh.Schedule.Friday),
				Saturday:  dayPatch(bh.Schedule.Saturday),
				Sunday:    dayPatch(bh.Schedule.Sunday),
			},
		},
		DisconnectSettings: &model.DisconnectSettingsPatch{
			Enabled:                  &ds.Enabled,
			InactivityTimeoutMinutes: &ds.InactivityTimeoutMinutes,
			DisconnectMessage:        &ds.DisconnectMessage,
			ShowReconnectButton:      &ds.ShowReconnectButton,
		},
	}
}

func dayPatch(d model.DaySchedule) *model.DaySchedulePatch {
	return &model.DaySchedulePatch{Enabled: &d.Enabled, StartTime: &d.StartTime, EndTime: &d.EndTime}
}

// DecodeStored reads a serialized ChatConfig (saved preview config) over the defaults.
// A malformed payload yields the defaults and the decode error.
func DecodeStored(raw []byte) (model.ChatConfig, error) {
	p, err := DecodePatch(raw)
	if err != nil {
		return Default(), err
	}
	return Merge(Default(), p), nil
}
