package model

// ConfigPatch is a partial ChatConfig. A nil field means "not supplied" and leaves the base
// untouched; nested groups are patches themselves so a single leaf can be overridden.
type ConfigPatch struct {
	ThemeColor  *string `json:"themeColor,omitempty"`
	CompanyName *string `json:"companyName,omitempty"`
	AgentName   *string `json:"agentName,omitempty"`
	CompanyLogo *string `json:"companyLogo,omitempty"`

	WelcomeMessage     *string `json:"welcomeMessage,omitempty"`
	WelcomeMessageIcon *string `json:"welcomeMessageIcon,omitempty"`
	FallbackMessage    *string `json:"fallbackMessage,omitempty"`

	Position          *Position    `json:"position,omitempty"`
	ChatIcon          *ChatIcon    `json:"chatIcon,omitempty"`
	CustomChatIconURL *string      `json:"customChatIconUrl,omitempty"`
	ShowChatPrompt    *bool        `json:"showChatPrompt,omitempty"`
	ChatPromptMessage *string      `json:"chatPromptMessage,omitempty"`
	PromptStyle       *PromptStyle `json:"promptStyle,omitempty"`
	ShowUserStatus    *bool        `json:"showUserStatus,omitempty"`
	ShowMessageStatus *bool        `json:"showMessageStatus,omitempty"`
	ShowAgentIcon     *bool        `json:"showAgentIcon,omitempty"`

	RequireUserInfo *bool                `json:"requireUserInfo,omitempty"`
	RequiredFields  *RequiredFieldsPatch `json:"requiredFields,omitempty"`
	UserInfoMessage *string              `json:"userInfoMessage,omitempty"`

	AgentType         *AgentType              `json:"agentType,omitempty"`
	OpenAIConfig      *OpenAIConfigPatch      `json:"openaiConfig,omitempty"`
	CustomAgentConfig *CustomAgentConfigPatch `json:"customAgentConfig,omitempty"`

	BusinessHours      *BusinessHoursPatch      `json:"businessHours,omitempty"`
	DisconnectSettings *DisconnectSettingsPatch `json:"disconnectSettings,omitempty"`
}

type RequiredFieldsPatch struct {
	Name  *bool `json:"name,omitempty"`
	Email *bool `json:"email,omitempty"`
	Phone *bool `json:"phone,omitempty"`
}

type OpenAIConfigPatch struct {
	APIKey       *string `json:"apiKey,omitempty"`
	Model        *string `json:"model,omitempty"`
	SystemPrompt *string `json:"systemPrompt,omitempty"`
}

// CustomAgentConfigPatch merges Headers key by key; an empty-string value removes the key.
type CustomAgentConfigPatch struct {
	WebhookURL *string            `json:"webhookUrl,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
}

type DaySchedulePatch struct {
	Enabled   *bool   `json:"enabled,omitempty"`
	StartTime *string `json:"startTime,omitempty"`
	EndTime   *string `json:"endTime,omitempty"`
}

type WeekSchedulePatch struct {
	Monday    *DaySchedulePatch `json:"monday,omitempty"`
	Tuesday   *DaySchedulePatch `json:"tuesday,omitempty"`
	Wednesday *DaySchedulePatch `json:"wednesday,omitempty"`
	Thursday  *DaySchedulePatch `json:"thursday,omitempty"`
	Friday    *DaySchedulePatch `json:"friday,omitempty"`
	Saturday  *DaySchedulePatch `json:"saturday,omitempty"`
	Sunday    *DaySchedulePatch `json:"sunday,omitempty"`
}

type BusinessHoursPatch struct {
	Enabled             *bool              `json:"enabled,omitempty"`
	Timezone            *string            `json:"timezone,omitempty"`
	Schedule            *WeekSchedulePatch `json:"schedule,omitempty"`
	OutsideHoursMessage *string            `json:"outsideHoursMessage,omitempty"`
}

type DisconnectSettingsPatch struct {
	Enabled                  *bool   `json:"enabled,omitempty"`
	InactivityTimeoutMinutes *int    `json:"inactivityTimeoutMinutes,omitempty"`
	DisconnectMessage        *string `json:"disconnectMessage,omitempty"`
	ShowReconnectButton      *bool   `json:"showReconnectButton,omitempty"`
}
