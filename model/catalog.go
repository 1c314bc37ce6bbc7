package model

// Provider identifies which chat API serves a catalog entry.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
	ProviderDeepSeek  Provider = "deepseek"
)

// Model identifiers of the closed catalog.
const (
	ModelGPT5ChatLatest = "gpt-5-chat-latest"
	ModelGPT41          = "gpt-4.1"
	ModelGPT4oMini      = "gpt-4o-mini"
	ModelClaude37Sonnet = "claude-3.7-sonnet"
	ModelGemini25Flash  = "gemini-2.5-flash"
	ModelDeepSeekR1     = "deepseek-r1-0528"
)

// Defaults of the two-tier cost-control policy: admins and short chats get
// the primary model, longer chats drop to the cheaper secondary.
const (
	PrimaryDefaultModel   = ModelGPT41
	SecondaryDefaultModel = ModelGPT4oMini

	// DefaultModelSwitchCount is the message count at which regular users
	// switch from the primary to the secondary default.
	DefaultModelSwitchCount = 20
)

// ModelOption is one immutable catalog entry.
type ModelOption struct {
	Value       string   `json:"value"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Provider    Provider `json:"provider"`
	Credits     int      `json:"credits"`
}

// Catalog maps model identifiers to their descriptors. It is built once at
// startup and injected into the router; routers never consult globals.
type Catalog struct {
	options []ModelOption
	byID    map[string]ModelOption
}

func NewCatalog(options []ModelOption) *Catalog {
	byID := make(map[string]ModelOption, len(options))
	for _, opt := range options {
		byID[opt.Value] = opt
	}
	return &Catalog{options: options, byID: byID}
}

// DefaultCatalog returns the production model catalog.
func DefaultCatalog() *Catalog {
	return NewCatalog([]ModelOption{
		{
			Value:       ModelGPT5ChatLatest,
			Label:       "GPT-5",
			Description: "Latest GPT-5 model for chat",
			Provider:    ProviderOpenAI,
			Credits:     1,
		},
		{
			Value:       ModelGPT41,
			Label:       "GPT-4.1",
			Description: "Smart non-reasoning model",
			Provider:    ProviderOpenAI,
			Credits:     1,
		},
		{
			Value:       ModelGPT4oMini,
			Label:       "GPT-4o Mini",
			Description: "Fast and efficient for most tasks",
			Provider:    ProviderOpenAI,
			Credits:     1,
		},
		{
			Value:       ModelClaude37Sonnet,
			Label:       "Claude 3.7 Sonnet",
			Description: "Advanced reasoning and analysis",
			Provider:    ProviderAnthropic,
			Credits:     2,
		},
		{
			Value:       ModelGemini25Flash,
			Label:       "Gemini 2.5 Flash",
			Description: "Fast multimodal AI model",
			Provider:    ProviderGoogle,
			Credits:     0,
		},
		{
			Value:       ModelDeepSeekR1,
			Label:       "DeepSeek R1",
			Description: "Advanced reasoning model",
			Provider:    ProviderDeepSeek,
			Credits:     0,
		},
	})
}

func (c *Catalog) Options() []ModelOption {
	return c.options
}

func (c *Catalog) Lookup(id string) (ModelOption, bool) {
	opt, ok := c.byID[id]
	return opt, ok
}

func (c *Catalog) Valid(id string) bool {
	_, ok := c.byID[id]
	return ok
}
