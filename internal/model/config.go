package model

type Position string

const (
	PositionBottomRight Position = "bottom-right"
	PositionBottomLeft  Position = "bottom-left"
	PositionTopRight    Position = "top-right"
	PositionTopLeft     Position = "top-left"
)

func (p Position) Valid() bool {
	switch p {
	case PositionBottomRight, PositionBottomLeft, PositionTopRight, PositionTopLeft:
		return true
	}
	return false
}

type ChatIcon string

const (
	ChatIconMessageCircle ChatIcon = "message-circle"
	ChatIconMessageSquare ChatIcon = "message-square"
	ChatIconPhone         ChatIcon = "phone"
	ChatIconHeadphones    ChatIcon = "headphones"
	ChatIconHelpCircle    ChatIcon = "help-circle"
	ChatIconMail          ChatIcon = "mail"
	ChatIconCustom        ChatIcon = "custom"
)

func (i ChatIcon) Valid() bool {
	switch i {
	case ChatIconMessageCircle, ChatIconMessageSquare, ChatIconPhone, ChatIconHeadphones,
		ChatIconHelpCircle, ChatIconMail, ChatIconCustom:
		return true
	}
	return false
}

type PromptStyle string

const (
	PromptStyleBubbleAbove PromptStyle = "bubble-above"
	PromptStyleInline      PromptStyle = "inline"
)

func (s PromptStyle) Valid() bool {
	return s == PromptStyleBubbleAbove || s == PromptStyleInline
}

type AgentType string

const (
	AgentTypeHuman  AgentType = "human"
	AgentTypeAI     AgentType = "ai"
	AgentTypeCustom AgentType = "custom"
)

func (a AgentType) Valid() bool {
	return a == AgentTypeHuman || a == AgentTypeAI || a == AgentTypeCustom
}

// RequiredField names one entry of RequiredFields.
type RequiredField string

const (
	FieldName  RequiredField = "name"
	FieldEmail RequiredField = "email"
	FieldPhone RequiredField = "phone"
)

func (f RequiredField) Valid() bool {
	return f == FieldName || f == FieldEmail || f == FieldPhone
}

type RequiredFields struct {
	Name  bool `json:"name"`
	Email bool `json:"email"`
	Phone bool `json:"phone"`
}

// Count returns the number of required entries.
func (f RequiredFields) Count() int {
	n := 0
	for _, v := range []bool{f.Name, f.Email, f.Phone} {
		if v {
			n++
		}
	}
	return n
}

// Get reports whether field is required; unknown fields are never required.
func (f RequiredFields) Get(field RequiredField) bool {
	switch field {
	case FieldName:
		return f.Name
	case FieldEmail:
		return f.Email
	case FieldPhone:
		return f.Phone
	}
	return false
}

// With returns a copy with field set to v. ok is false for an unknown field.
func (f RequiredFields) With(field RequiredField, v bool) (RequiredFields, bool) {
	switch field {
	case FieldName:
		f.Name = v
	case FieldEmail:
		f.Email = v
	case FieldPhone:
		f.Phone = v
	default:
		return f, false
	}
	return f, true
}

type OpenAIConfig struct {
	APIKey       string `json:"apiKey"`
	Model        string `json:"model"`
	SystemPrompt string `json:"systemPrompt"`
}

type CustomAgentConfig struct {
	WebhookURL string            `json:"webhookUrl"`
	Headers    map[string]string `json:"headers"`
}

type DaySchedule struct {
	Enabled   bool   `json:"enabled"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type WeekSchedule struct {
	Monday    DaySchedule `json:"monday"`
	Tuesday   DaySchedule `json:"tuesday"`
	Wednesday DaySchedule `json:"wednesday"`
	Thursday  DaySchedule `json:"thursday"`
	Friday    DaySchedule `json:"friday"`
	Saturday  DaySchedule `json:"saturday"`
	Sunday    DaySchedule `json:"sunday"`
}

type BusinessHours struct {
	Enabled             bool         `json:"enabled"`
	Timezone            string       `json:"timezone"`
	Schedule            WeekSchedule `json:"schedule"`
	OutsideHoursMessage string       `json:"outsideHoursMessage"`
}

type DisconnectSettings struct {
	Enabled                  bool   `json:"enabled"`
	InactivityTimeoutMinutes int    `json:"inactivityTimeoutMinutes"`
	DisconnectMessage        string `json:"disconnectMessage"`
	ShowReconnectButton      bool   `json:"showReconnectButton"`
}

// ChatConfig is the resolved widget configuration. Treat it as a value: changes go through
// widgetconfig.Merge and replace the whole struct.
type ChatConfig struct {
	ThemeColor  string `json:"themeColor"`
	CompanyName string `json:"companyName"`
	AgentName   string `json:"agentName"`
	CompanyLogo string `json:"companyLogo,omitempty"`

	WelcomeMessage     string `json:"welcomeMessage"`
	WelcomeMessageIcon string `json:"welcomeMessageIcon,omitempty"`
	FallbackMessage    string `json:"fallbackMessage"`

	Position          Position    `json:"position"`
	ChatIcon          ChatIcon    `json:"chatIcon"`
	CustomChatIconURL string      `json:"customChatIconUrl,omitempty"`
	ShowChatPrompt    bool        `json:"showChatPrompt"`
	ChatPromptMessage string      `json:"chatPromptMessage"`
	PromptStyle       PromptStyle `json:"promptStyle"`
	ShowUserStatus    bool        `json:"showUserStatus"`
	ShowMessageStatus bool        `json:"showMessageStatus"`
	ShowAgentIcon     bool        `json:"showAgentIcon"`

	RequireUserInfo bool           `json:"requireUserInfo"`
	RequiredFields  RequiredFields `json:"requiredFields"`
	UserInfoMessage string         `json:"userInfoMessage"`

	AgentType         AgentType         `json:"agentType"`
	OpenAIConfig      OpenAIConfig      `json:"openaiConfig"`
	CustomAgentConfig CustomAgentConfig `json:"customAgentConfig"`

	BusinessHours      BusinessHours      `json:"businessHours"`
	DisconnectSettings DisconnectSettings `json:"disconnectSettings"`
}

// Clone returns a deep copy; the headers map is the only shared reference type.
func (c ChatConfig) Clone() ChatConfig {
	if c.CustomAgentConfig.Headers != nil {
		h := make(map[string]string, len(c.CustomAgentConfig.Headers))
		for k, v := range c.CustomAgentConfig.Headers {
			h[k] = v
		}
		c.CustomAgentConfig.Headers = h
	}
	return c
}
