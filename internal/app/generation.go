package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"personify/internal/util"
	"personify/pkg/ai"
	"personify/pkg/domain"
)

const (
	imageSize     = "1024x1024"
	imageQuality  = "standard"
	textMaxTokens = 1000
	textTemp      = 0.7
)

// imagePromptFragments collects the persona fields used to enhance an image
// prompt, in fixed order, skipping empties.
func imagePromptFragments(p domain.Persona) []string {
	fragments := make([]string, 0, 3)
	if p.Bio != "" {
		fragments = append(fragments, p.Bio)
	}
	if p.Industry != "" {
		fragments = append(fragments, "Industry: "+p.Industry)
	}
	if p.BrandTone != "" {
		fragments = append(fragments, "Tone: "+p.BrandTone)
	}
	return fragments
}

// textProfileFragments collects the persona fields embedded into the text
// system instruction, in fixed order, skipping empties.
func textProfileFragments(p domain.Persona) []string {
	fragments := make([]string, 0, 4)
	if p.Bio != "" {
		fragments = append(fragments, p.Bio)
	}
	if p.Industry != "" {
		fragments = append(fragments, "Industry: "+p.Industry)
	}
	if p.TargetAudience != "" {
		fragments = append(fragments, "Target audience: "+p.TargetAudience)
	}
	if p.BrandTone != "" {
		fragments = append(fragments, "Brand tone: "+p.BrandTone)
	}
	return fragments
}

// EnhanceImagePrompt prefixes the prompt with persona context. Without a
// persona, or with all fields empty, the prompt passes through verbatim.
func EnhanceImagePrompt(persona *domain.Persona, prompt string) string {
	if persona == nil {
		return prompt
	}
	fragments := imagePromptFragments(*persona)
	if len(fragments) == 0 {
		return prompt
	}
	return strings.Join(fragments, ". ") + ". " + prompt
}

// TextSystemInstruction builds the system message for text generation from
// the persona profile, falling back to a generic assistant instruction.
func TextSystemInstruction(persona *domain.Persona) string {
	if persona != nil {
		fragments := textProfileFragments(*persona)
		if len(fragments) > 0 {
			return fmt.Sprintf("You are a content creator with this profile: %s. Create content that matches this persona.", strings.Join(fragments, ". "))
		}
	}
	return "You are a helpful AI assistant."
}

// CheckUsage counts the caller's generations of one type since local
// midnight against the daily ceiling. Returns a DailyLimitError when the
// ceiling is met.
//
// The check and the later row insert are deliberately not one transaction:
// concurrent requests from the same user can both pass and briefly exceed
// the ceiling, matching the behavior this service has always had.
func (a *App) CheckUsage(userID string, genType domain.GenerationType) (domain.UsageInfo, error) {
	limit := a.textDailyLimit
	if genType == domain.GenerationImage {
		limit = a.imageDailyLimit
	}
	now := a.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	used, err := a.store.CountGenerationsSince(userID, genType, dayStart)
	if err != nil {
		return domain.UsageInfo{}, fmt.Errorf("count usage: %w", err)
	}
	if used >= limit {
		return domain.UsageInfo{}, &DailyLimitError{Type: genType, Limit: limit, Used: used}
	}
	return domain.UsageInfo{Limit: limit, Used: used, Remaining: limit - used}, nil
}

// GenerateImage runs the image workflow: validate, enhance the prompt with
// the caller's persona, persist a pending record holding the original
// prompt, call the provider, and persist the outcome.
func (a *App) GenerateImage(ctx context.Context, userID, prompt, model string) (domain.Generation, error) {
	if strings.TrimSpace(prompt) == "" {
		return domain.Generation{}, ErrPromptRequired
	}
	if model == "" {
		model = a.imageModel
	}

	persona := a.personaForUser(ctx, userID)
	enhanced := EnhanceImagePrompt(persona, prompt)

	quality := ""
	if model == a.imageModel {
		quality = imageQuality
	}
	params := map[string]any{"n": 1, "size": imageSize}
	if quality != "" {
		params["quality"] = quality
	}

	gen := domain.Generation{
		ID:        util.NewID(),
		UserID:    userID,
		Type:      domain.GenerationImage,
		Prompt:    prompt,
		Model:     model,
		Status:    domain.StatusPending,
		Params:    params,
		CreatedAt: a.now().UTC(),
	}
	if err := a.store.CreateGeneration(gen); err != nil {
		return domain.Generation{}, fmt.Errorf("create generation: %w", err)
	}

	url, err := a.images.GenerateImage(ctx, ai.ImageRequest{
		Model:   model,
		Prompt:  enhanced,
		N:       1,
		Size:    imageSize,
		Quality: quality,
	})
	if err != nil {
		a.failGeneration(ctx, gen.ID, err)
		return domain.Generation{}, err
	}

	if err := a.store.SetGenerationOutcome(gen.ID, domain.StatusCompleted, url, ""); err != nil {
		return domain.Generation{}, fmt.Errorf("update generation: %w", err)
	}
	gen.Status = domain.StatusCompleted
	gen.Result = url
	return gen, nil
}

// GenerateText runs the text workflow. The persona shapes the system
// instruction; the user prompt goes to the provider verbatim.
func (a *App) GenerateText(ctx context.Context, userID, prompt, model string) (domain.Generation, error) {
	if strings.TrimSpace(prompt) == "" {
		return domain.Generation{}, ErrPromptRequired
	}
	if model == "" {
		model = a.textModel
	}

	persona := a.personaForUser(ctx, userID)
	system := TextSystemInstruction(persona)

	gen := domain.Generation{
		ID:     util.NewID(),
		UserID: userID,
		Type:   domain.GenerationText,
		Prompt: prompt,
		Model:  model,
		Status: domain.StatusPending,
		Params: map[string]any{
			"max_tokens":  textMaxTokens,
			"temperature": textTemp,
		},
		CreatedAt: a.now().UTC(),
	}
	if err := a.store.CreateGeneration(gen); err != nil {
		return domain.Generation{}, fmt.Errorf("create generation: %w", err)
	}

	text, err := a.texts.GenerateText(ctx, ai.TextRequest{
		Model:       model,
		System:      system,
		Prompt:      prompt,
		MaxTokens:   textMaxTokens,
		Temperature: textTemp,
	})
	if err != nil {
		a.failGeneration(ctx, gen.ID, err)
		return domain.Generation{}, err
	}

	if err := a.store.SetGenerationOutcome(gen.ID, domain.StatusCompleted, text, ""); err != nil {
		return domain.Generation{}, fmt.Errorf("update generation: %w", err)
	}
	gen.Status = domain.StatusCompleted
	gen.Result = text
	return gen, nil
}

// ListGenerations returns the caller's history, newest-first.
func (a *App) ListGenerations(userID string, genType domain.GenerationType, limit int) ([]domain.Generation, error) {
	return a.store.ListGenerationsByUser(userID, genType, limit)
}

// GetGeneration fetches one generation, enforcing ownership.
func (a *App) GetGeneration(userID, id string) (domain.Generation, error) {
	gen, found, err := a.store.GetGeneration(id)
	if err != nil {
		return domain.Generation{}, fmt.Errorf("fetch generation: %w", err)
	}
	if !found {
		return domain.Generation{}, ErrGenerationNotFound
	}
	if gen.UserID != userID {
		return domain.Generation{}, ErrNotOwner
	}
	return gen, nil
}

// DeleteGeneration removes one generation, enforcing ownership.
func (a *App) DeleteGeneration(userID, id string) error {
	gen, found, err := a.store.GetGeneration(id)
	if err != nil {
		return fmt.Errorf("fetch generation: %w", err)
	}
	if !found {
		return ErrGenerationNotFound
	}
	if gen.UserID != userID {
		return ErrNotOwner
	}
	if err := a.store.DeleteGeneration(id); err != nil {
		return fmt.Errorf("delete generation: %w", err)
	}
	return nil
}

// personaForUser loads the caller's persona; absence is not an error.
func (a *App) personaForUser(ctx context.Context, userID string) *domain.Persona {
	persona, found, err := a.store.GetPersonaByUser(userID)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("persona lookup failed", "user_id", userID, "err", err)
		return nil
	}
	if !found {
		return nil
	}
	return &persona
}

// failGeneration records the provider failure on the row before the error
// propagates, so persisted state reflects the true outcome.
func (a *App) failGeneration(ctx context.Context, id string, cause error) {
	if err := a.store.SetGenerationOutcome(id, domain.StatusFailed, "", cause.Error()); err != nil {
		util.LoggerFromContext(ctx).Error("record generation failure", "generation_id", id, "err", err)
	}
}
