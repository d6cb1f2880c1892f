// Package widgetconfig owns the ChatConfig rules: defaults, typed deep merge, the
// required-fields invariant and normalization of out-of-range values.
package widgetconfig

import "github.com/chatwidget/internal/model"

const (
	DefaultThemeColor = "#6366f1"
	DefaultTimezone   = "UTC"

	// MinRequiredFields is the smallest number of gate fields allowed in mandatory mode.
	MinRequiredFields = 2
	// MinInactivityTimeoutMinutes is the lower bound for disconnectSettings.inactivityTimeoutMinutes.
	MinInactivityTimeoutMinutes = 1
)

func workday() model.DaySchedule {
	return model.DaySchedule{Enabled: true, StartTime: "09:00", EndTime: "17:00"}
}

func weekendDay() model.DaySchedule {
	return model.DaySchedule{Enabled: false, StartTime: "09:00", EndTime: "17:00"}
}

// Default returns a fully populated config. Only cosmetic optionals (companyLogo,
// customChatIconUrl) are left empty.
func Default() model.ChatConfig {
	return model.ChatConfig{
		ThemeColor:  DefaultThemeColor,
		CompanyName: "Your Company",
		AgentName:   "Support Agent",

		WelcomeMessage:     "Hi there! How can we help you today?",
		WelcomeMessageIcon: "👋",
		FallbackMessage:    "Sorry, our agents are currently unavailable. Please leave a message and we'll get back to you soon!",

		Position:          model.PositionBottomRight,
		ChatIcon:          model.ChatIconMessageCircle,
		ShowChatPrompt:    true,
		ChatPromptMessage: "Need help? Chat with us!",
		PromptStyle:       model.PromptStyleBubbleAbove,
		ShowUserStatus:    true,
		ShowMessageStatus: true,
		ShowAgentIcon:     true,

		RequireUserInfo: false,
		RequiredFields:  model.RequiredFields{Name: true, Email: true, Phone: false},
		UserInfoMessage: "Please provide your details to start the conversation:",

		AgentType: model.AgentTypeHuman,
		OpenAIConfig: model.OpenAIConfig{
			Model:        "gpt-3.5-turbo",
			SystemPrompt: "You are a helpful customer support assistant.",
		},
		CustomAgentConfig: model.CustomAgentConfig{Headers: map[string]string{}},

		BusinessHours: model.BusinessHours{
			Enabled:  false,
			Timezone: DefaultTimezone,
			Schedule: model.WeekSchedule{
				Monday:    workday(),
				Tuesday:   workday(),
				Wednesday: workday(),
				Thursday:  workday(),
				Friday:    workday(),
				Saturday:  weekendDay(),
				Sunday:    weekendDay(),
			},
			OutsideHoursMessage: "We're currently offline. Please leave a message and we'll get back to you during business hours.",
		},
		DisconnectSettings: model.DisconnectSettings{
			Enabled:                  false,
			InactivityTimeoutMinutes: 15,
			DisconnectMessage:        "You've been disconnected due to inactivity. Please start a new conversation if you need further assistance.",
			ShowReconnectButton:      true,
		},
	}
}
