package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"personify/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&UserModel{}, &PersonaModel{}, &PersonaImageModel{}, &GenerationModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "name", "password_hash"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// UserCount returns number of users.
func (s *GormStore) UserCount() (int, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// SavePersona stores or updates a persona.
func (s *GormStore) SavePersona(p domain.Persona) error {
	model := personaToModel(p)
	return s.db.Omit("Images").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"bio", "industry", "target_audience", "brand_tone", "updated_at"}),
	}).Create(&model).Error
}

// GetPersonaByUser returns the persona owned by a user, with its images.
func (s *GormStore) GetPersonaByUser(userID string) (domain.Persona, bool, error) {
	var model PersonaModel
	if err := s.db.Preload("Images").Where("user_id = ?", userID).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Persona{}, false, nil
		}
		return domain.Persona{}, false, err
	}
	return personaFromModel(model), true, nil
}

// DeletePersona removes a persona; image rows go with it via FK cascade.
func (s *GormStore) DeletePersona(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&PersonaImageModel{}, "persona_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&PersonaModel{}, "id = ?", id).Error
	})
}

// AddPersonaImage records an uploaded reference image.
func (s *GormStore) AddPersonaImage(img domain.PersonaImage) error {
	model := personaImageToModel(img)
	return s.db.Create(&model).Error
}

// GetPersonaImage returns one image row by ID.
func (s *GormStore) GetPersonaImage(id string) (domain.PersonaImage, bool, error) {
	var model PersonaImageModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.PersonaImage{}, false, nil
		}
		return domain.PersonaImage{}, false, err
	}
	return personaImageFromModel(model), true, nil
}

// DeletePersonaImage removes one image row.
func (s *GormStore) DeletePersonaImage(id string) error {
	return s.db.Delete(&PersonaImageModel{}, "id = ?", id).Error
}

// CreateGeneration inserts a new generation record.
func (s *GormStore) CreateGeneration(g domain.Generation) error {
	model := generationToModel(g)
	return s.db.Create(&model).Error
}

// SetGenerationOutcome moves a generation out of pending exactly once.
func (s *GormStore) SetGenerationOutcome(id string, status domain.GenerationStatus, result, errMsg string) error {
	return s.db.Model(&GenerationModel{}).
		Where("id = ? AND status = ?", id, string(domain.StatusPending)).
		Updates(map[string]any{
			"status":        string(status),
			"result":        result,
			"error_message": errMsg,
		}).Error
}

// GetGeneration retrieves one generation by ID.
func (s *GormStore) GetGeneration(id string) (domain.Generation, bool, error) {
	var model GenerationModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Generation{}, false, nil
		}
		return domain.Generation{}, false, err
	}
	return generationFromModel(model), true, nil
}

// ListGenerationsByUser returns a user's generations newest-first,
// optionally filtered by type.
func (s *GormStore) ListGenerationsByUser(userID string, genType domain.GenerationType, limit int) ([]domain.Generation, error) {
	if limit <= 0 {
		limit = 100
	}
	tx := s.db.Where("user_id = ?", userID)
	if genType != "" {
		tx = tx.Where("type = ?", string(genType))
	}
	var models []GenerationModel
	if err := tx.Order("created_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Generation, 0, len(models))
	for _, m := range models {
		res = append(res, generationFromModel(m))
	}
	return res, nil
}

// DeleteGeneration removes one generation row.
func (s *GormStore) DeleteGeneration(id string) error {
	return s.db.Delete(&GenerationModel{}, "id = ?", id).Error
}

// CountGenerationsSince counts a user's generations of one type created at
// or after the cutoff. Drives the daily usage ceiling.
func (s *GormStore) CountGenerationsSince(userID string, genType domain.GenerationType, since time.Time) (int, error) {
	var count int64
	if err := s.db.Model(&GenerationModel{}).
		Where("user_id = ? AND type = ? AND created_at >= ?", userID, string(genType), since).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		Name:         m.Name,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
	}
}

func personaToModel(p domain.Persona) PersonaModel {
	return PersonaModel{
		ID:             p.ID,
		UserID:         p.UserID,
		Bio:            p.Bio,
		Industry:       p.Industry,
		TargetAudience: p.TargetAudience,
		BrandTone:      p.BrandTone,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func personaFromModel(m PersonaModel) domain.Persona {
	images := make([]domain.PersonaImage, 0, len(m.Images))
	for _, img := range m.Images {
		images = append(images, personaImageFromModel(img))
	}
	return domain.Persona{
		ID:             m.ID,
		UserID:         m.UserID,
		Bio:            m.Bio,
		Industry:       m.Industry,
		TargetAudience: m.TargetAudience,
		BrandTone:      m.BrandTone,
		Images:         images,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func personaImageToModel(img domain.PersonaImage) PersonaImageModel {
	return PersonaImageModel{
		ID:        img.ID,
		PersonaID: img.PersonaID,
		ImageURL:  img.ImageURL,
		CreatedAt: img.CreatedAt,
	}
}

func personaImageFromModel(m PersonaImageModel) domain.PersonaImage {
	return domain.PersonaImage{
		ID:        m.ID,
		PersonaID: m.PersonaID,
		ImageURL:  m.ImageURL,
		CreatedAt: m.CreatedAt,
	}
}

func generationToModel(g domain.Generation) GenerationModel {
	var params []byte
	if len(g.Params) > 0 {
		params, _ = json.Marshal(g.Params)
	}
	return GenerationModel{
		ID:           g.ID,
		UserID:       g.UserID,
		Type:         string(g.Type),
		Prompt:       g.Prompt,
		Model:        g.Model,
		Result:       g.Result,
		Status:       string(g.Status),
		ErrorMessage: g.ErrorMessage,
		Params:       params,
		CreatedAt:    g.CreatedAt,
	}
}

func generationFromModel(m GenerationModel) domain.Generation {
	var params map[string]any
	if len(m.Params) > 0 {
		_ = json.Unmarshal(m.Params, &params)
	}
	return domain.Generation{
		ID:           m.ID,
		UserID:       m.UserID,
		Type:         domain.GenerationType(m.Type),
		Prompt:       m.Prompt,
		Model:        m.Model,
		Result:       m.Result,
		Status:       domain.GenerationStatus(m.Status),
		ErrorMessage: m.ErrorMessage,
		Params:       params,
		CreatedAt:    m.CreatedAt,
	}
}
