package model

import (
	"fmt"
	"log/slog"

	"askpdf/types"
)

// Router resolves a model selection to a provider-bound chat client. User
// supplied credentials take precedence over the system credentials loaded
// from the environment.
type Router struct {
	catalog    *Catalog
	systemKeys types.APIKeys
	logger     *slog.Logger
}

func NewRouter(catalog *Catalog, systemKeys types.APIKeys, logger *slog.Logger) *Router {
	return &Router{
		catalog:    catalog,
		systemKeys: systemKeys,
		logger:     logger,
	}
}

// defaultOption applies the two-tier cost policy: admins always get the
// primary default, regular users get it for the first messages of a chat and
// drop to the cheaper secondary model after DefaultModelSwitchCount.
func (r *Router) defaultOption(messageCount int, isAdmin bool) ModelOption {
	if isAdmin || messageCount < DefaultModelSwitchCount {
		opt, _ := r.catalog.Lookup(PrimaryDefaultModel)
		return opt
	}
	opt, _ := r.catalog.Lookup(SecondaryDefaultModel)
	return opt
}

// Resolve picks a catalog entry for the request and builds the provider
// client for it. An unrecognized selection falls back to the tier default
// instead of failing. A recognized model whose provider has no credential
// fails with types.ErrModelConfiguration before any provider is called.
func (r *Router) Resolve(selected string, messageCount int, isAdmin bool, userKeys types.APIKeys) (ChatClient, ModelOption, error) {
	opt, ok := r.catalog.Lookup(selected)
	if !ok {
		if selected != "" {
			r.logger.Warn("unknown model selection, using default", "selected", selected)
		}
		opt = r.defaultOption(messageCount, isAdmin)
	}

	client, err := r.buildClient(opt, userKeys)
	if err != nil {
		return nil, ModelOption{}, err
	}
	return client, opt, nil
}

func (r *Router) buildClient(opt ModelOption, userKeys types.APIKeys) (ChatClient, error) {
	switch opt.Provider {
	case ProviderOpenAI:
		key := pickKey(userKeys.OpenAI, r.systemKeys.OpenAI)
		if key == "" {
			return nil, r.missingKey(opt)
		}
		return NewOpenAICompatClient(key, "", opt.Value)
	case ProviderAnthropic:
		key := pickKey(userKeys.Anthropic, r.systemKeys.Anthropic)
		if key == "" {
			return nil, r.missingKey(opt)
		}
		return NewAnthropicClient(key, opt.Value)
	case ProviderGoogle:
		key := pickKey(userKeys.Google, r.systemKeys.Google)
		if key == "" {
			return nil, r.missingKey(opt)
		}
		return NewOpenAICompatClient(key, GoogleBaseURL, opt.Value)
	case ProviderDeepSeek:
		key := pickKey(userKeys.DeepSeek, r.systemKeys.DeepSeek)
		if key == "" {
			return nil, r.missingKey(opt)
		}
		return NewOpenAICompatClient(key, DeepSeekBaseURL, opt.Value)
	default:
		// Unreachable with a closed catalog. Degrade to the system default
		// OpenAI model rather than failing the request.
		r.logger.Warn("unknown provider, substituting system default", "provider", opt.Provider, "model", opt.Value)
		key := pickKey(userKeys.OpenAI, r.systemKeys.OpenAI)
		if key == "" {
			return nil, r.missingKey(opt)
		}
		return NewOpenAICompatClient(key, "", PrimaryDefaultModel)
	}
}

func (r *Router) missingKey(opt ModelOption) error {
	return fmt.Errorf("%w: no API key configured for provider %s (model %s)",
		types.ErrModelConfiguration, opt.Provider, opt.Value)
}

func pickKey(userKey, systemKey string) string {
	if userKey != "" {
		return userKey
	}
	return systemKey
}
