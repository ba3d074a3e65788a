package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"catalystbot/types"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// ArticleRecord is the articles table row.
type ArticleRecord struct {
	ID          string `gorm:"primaryKey"`
	URL         string `gorm:"uniqueIndex"`
	Title       string
	Source      string
	Ticker      string `gorm:"index"`
	Summary     string
	Body        string
	PublishedAt time.Time
	FetchedAt   time.Time
	Processed   bool `gorm:"index"`
}

// AnalysisRecord is the analyses table row. Catalysts are stored as JSON text.
type AnalysisRecord struct {
	ID             string `gorm:"primaryKey"`
	ArticleID      string `gorm:"index"`
	ArticleURL     string
	Ticker         string `gorm:"index"`
	SentimentScore float64
	Confidence     float64
	Catalysts      string
	Reasoning      string
	Model          string
	Fingerprint    string `gorm:"index"`
	CreatedAt      time.Time
}

// PositionRecord is one surfaced position of a session.
type PositionRecord struct {
	ID             uint   `gorm:"primaryKey"`
	SessionID      string `gorm:"index"`
	Ticker         string
	Tier           string
	Confidence     float64
	SentimentScore float64
	Reasoning      string
	Payload        string
	CreatedAt      time.Time
}

// CacheRecord holds a cached analysis keyed by fingerprint.
type CacheRecord struct {
	Fingerprint string `gorm:"primaryKey"`
	Payload     string
	CreatedAt   time.Time
}

// SQL is a gorm-backed Store over SQLite.
type SQL struct {
	db *gorm.DB
}

// NewSQL opens (creating if needed) the SQLite database at path and migrates it.
func NewSQL(path string, logger zerolog.Logger) (*SQL, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.AutoMigrate(&ArticleRecord{}, &AnalysisRecord{}, &PositionRecord{}, &CacheRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info().Str("component", "store").Str("path", path).Msg("sqlite store ready")
	return &SQL{db: db}, nil
}

func (s *SQL) SaveArticle(ctx context.Context, a types.Article) error {
	rec := ArticleRecord{
		ID:          a.ID,
		URL:         a.URL,
		Title:       a.Title,
		Source:      a.Source,
		Ticker:      a.Ticker,
		Summary:     a.Summary,
		Body:        a.Body,
		PublishedAt: a.PublishedAt,
		FetchedAt:   a.FetchedAt,
		Processed:   a.Processed,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error
}

func (s *SQL) SaveAnalysis(ctx context.Context, a types.Analysis) error {
	catalysts, err := json.Marshal(a.Catalysts)
	if err != nil {
		return fmt.Errorf("marshal catalysts: %w", err)
	}
	rec := AnalysisRecord{
		ID:             a.ID,
		ArticleID:      a.ArticleID,
		ArticleURL:     a.ArticleURL,
		Ticker:         a.Ticker,
		SentimentScore: a.SentimentScore,
		Confidence:     a.Confidence,
		Catalysts:      string(catalysts),
		Reasoning:      a.Reasoning,
		Model:          a.Model,
		Fingerprint:    a.Fingerprint,
		CreatedAt:      a.CreatedAt,
	}
	return s.db.WithContext(ctx).Save(&rec).Error
}

func (s *SQL) SavePosition(ctx context.Context, sessionID string, p types.Position) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal position: %w", err)
	}
	rec := PositionRecord{
		SessionID:      sessionID,
		Ticker:         p.Ticker,
		Tier:           string(p.Tier),
		Confidence:     p.Confidence,
		SentimentScore: p.SentimentScore,
		Reasoning:      p.Reasoning,
		Payload:        string(payload),
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

// MarkProcessed flags the article. Articles never saved get a stub row so the
// flag still sticks.
func (s *SQL) MarkProcessed(ctx context.Context, articleID string) error {
	res := s.db.WithContext(ctx).Model(&ArticleRecord{}).Where("id = ?", articleID).Update("processed", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	stub := ArticleRecord{ID: articleID, URL: "processed:" + articleID, Processed: true}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&stub).Error
}

func (s *SQL) IsProcessed(ctx context.Context, articleID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&ArticleRecord{}).
		Where("id = ? AND processed = ?", articleID, true).
		Count(&count).Error
	return count > 0, err
}

func (s *SQL) GetCachedAnalysis(ctx context.Context, fingerprint string) (types.Analysis, bool, error) {
	var rec CacheRecord
	err := s.db.WithContext(ctx).First(&rec, "fingerprint = ?", fingerprint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Analysis{}, false, nil
	}
	if err != nil {
		return types.Analysis{}, false, err
	}
	var a types.Analysis
	if err := json.Unmarshal([]byte(rec.Payload), &a); err != nil {
		return types.Analysis{}, false, fmt.Errorf("decode cached analysis: %w", err)
	}
	return a, true, nil
}

func (s *SQL) PutCachedAnalysis(ctx context.Context, fingerprint string, a types.Analysis) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	rec := CacheRecord{Fingerprint: fingerprint, Payload: string(payload)}
	return s.db.WithContext(ctx).Save(&rec).Error
}

func (s *SQL) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// PositionsForSession returns saved positions in insertion order.
func (s *SQL) PositionsForSession(ctx context.Context, sessionID string) ([]types.Position, error) {
	var recs []PositionRecord
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("id").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]types.Position, 0, len(recs))
	for _, rec := range recs {
		var p types.Position
		if err := json.Unmarshal([]byte(rec.Payload), &p); err != nil {
			return nil, fmt.Errorf("decode position %d: %w", rec.ID, err)
		}
		out = append(out, p)
	}
	return out, nil
}
