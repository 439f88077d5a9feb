package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"personify/internal/util"
	"personify/pkg/domain"
)

// PersonaInput carries the writable persona fields. An empty field preserves
// the prior value on update.
type PersonaInput struct {
	Bio            string `json:"bio"`
	Industry       string `json:"industry"`
	TargetAudience string `json:"targetAudience"`
	BrandTone      string `json:"brandTone"`
}

// UpsertPersona creates the caller's persona on first write and merges on
// later writes: a non-empty supplied field wins, otherwise the prior value is
// kept. Returns created=true when a new record was made.
func (a *App) UpsertPersona(userID string, input PersonaInput) (domain.Persona, bool, error) {
	existing, found, err := a.store.GetPersonaByUser(userID)
	if err != nil {
		return domain.Persona{}, false, fmt.Errorf("fetch persona: %w", err)
	}
	now := a.now().UTC()
	persona := existing
	if !found {
		persona = domain.Persona{
			ID:        util.NewID(),
			UserID:    userID,
			CreatedAt: now,
		}
	}
	persona.Bio = mergeField(input.Bio, persona.Bio)
	persona.Industry = mergeField(input.Industry, persona.Industry)
	persona.TargetAudience = mergeField(input.TargetAudience, persona.TargetAudience)
	persona.BrandTone = mergeField(input.BrandTone, persona.BrandTone)
	persona.UpdatedAt = now
	if err := a.store.SavePersona(persona); err != nil {
		return domain.Persona{}, false, fmt.Errorf("save persona: %w", err)
	}
	saved, _, err := a.store.GetPersonaByUser(userID)
	if err != nil {
		return domain.Persona{}, false, fmt.Errorf("reload persona: %w", err)
	}
	return saved, !found, nil
}

// GetPersona returns the caller's persona with its images.
func (a *App) GetPersona(userID string) (domain.Persona, error) {
	persona, found, err := a.store.GetPersonaByUser(userID)
	if err != nil {
		return domain.Persona{}, fmt.Errorf("fetch persona: %w", err)
	}
	if !found {
		return domain.Persona{}, ErrPersonaNotFound
	}
	return persona, nil
}

// DeletePersona removes the caller's persona, its image rows, and the stored
// files. File-removal failures are logged and swallowed; the database delete
// proceeds regardless.
func (a *App) DeletePersona(ctx context.Context, userID string) error {
	persona, found, err := a.store.GetPersonaByUser(userID)
	if err != nil {
		return fmt.Errorf("fetch persona: %w", err)
	}
	if !found {
		return ErrPersonaNotFound
	}
	for _, img := range persona.Images {
		a.removeStoredFile(ctx, img.ImageURL)
	}
	if err := a.store.DeletePersona(persona.ID); err != nil {
		return fmt.Errorf("delete persona: %w", err)
	}
	return nil
}

// AddPersonaImage stores an uploaded reference image, creating the persona
// on demand when none exists yet.
func (a *App) AddPersonaImage(ctx context.Context, userID, filename string, r io.Reader, size int64, contentType string) (domain.PersonaImage, error) {
	persona, found, err := a.store.GetPersonaByUser(userID)
	if err != nil {
		return domain.PersonaImage{}, fmt.Errorf("fetch persona: %w", err)
	}
	now := a.now().UTC()
	if !found {
		persona = domain.Persona{
			ID:        util.NewID(),
			UserID:    userID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := a.store.SavePersona(persona); err != nil {
			return domain.PersonaImage{}, fmt.Errorf("create persona: %w", err)
		}
	}
	url, err := a.uploads.Save(ctx, filename, r, size, contentType)
	if err != nil {
		return domain.PersonaImage{}, fmt.Errorf("store upload: %w", err)
	}
	image := domain.PersonaImage{
		ID:        util.NewID(),
		PersonaID: persona.ID,
		ImageURL:  url,
		CreatedAt: now,
	}
	if err := a.store.AddPersonaImage(image); err != nil {
		a.removeStoredFile(ctx, url)
		return domain.PersonaImage{}, fmt.Errorf("save image: %w", err)
	}
	return image, nil
}

// DeletePersonaImage removes one reference image after checking ownership.
func (a *App) DeletePersonaImage(ctx context.Context, userID, imageID string) error {
	image, found, err := a.store.GetPersonaImage(imageID)
	if err != nil {
		return fmt.Errorf("fetch image: %w", err)
	}
	if !found {
		return ErrImageNotFound
	}
	persona, ok, err := a.store.GetPersonaByUser(userID)
	if err != nil {
		return fmt.Errorf("fetch persona: %w", err)
	}
	if !ok || persona.ID != image.PersonaID {
		return ErrNotOwner
	}
	a.removeStoredFile(ctx, image.ImageURL)
	if err := a.store.DeletePersonaImage(imageID); err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}

func (a *App) removeStoredFile(ctx context.Context, url string) {
	if a.uploads == nil || strings.TrimSpace(url) == "" {
		return
	}
	if err := a.uploads.Delete(ctx, url); err != nil {
		util.LoggerFromContext(ctx).Warn("delete stored file failed", "url", url, "err", err)
	}
}

func mergeField(supplied, prior string) string {
	if strings.TrimSpace(supplied) != "" {
		return supplied
	}
	return prior
}
