package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"closetai/models"
	"closetai/services"
	"closetai/store"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	TypeGenerateOutfits  = "outfits:generate"
	TypeWardrobeInsights = "wardrobe:insights"
	TypeAnalyzePhoto     = "items:analyze_photo"
	TypeDailyOutfits     = "outfits:daily"

	QueueGenerate = "generate"
	QueueDefault  = "default"

	MaxRetry = 3
)

type GenerateOutfitsPayload struct {
	UserID      uint                        `json:"user_id"`
	Environment services.EnvironmentRequest `json:"environment"`
}

type WardrobeInsightsPayload struct {
	UserID uint `json:"user_id"`
}

type AnalyzePhotoPayload struct {
	UserID uint   `json:"user_id"`
	ItemID string `json:"item_id"`
}

func NewGenerateOutfitsTask(userID uint, env services.EnvironmentRequest) (*asynq.Task, error) {
	payload, err := json.Marshal(GenerateOutfitsPayload{UserID: userID, Environment: env})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeGenerateOutfits, payload, asynq.MaxRetry(MaxRetry), asynq.Queue(QueueGenerate)), nil
}

func NewWardrobeInsightsTask(userID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(WardrobeInsightsPayload{UserID: userID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeWardrobeInsights, payload, asynq.MaxRetry(MaxRetry), asynq.Queue(QueueGenerate)), nil
}

func NewAnalyzePhotoTask(userID uint, itemID string) (*asynq.Task, error) {
	payload, err := json.Marshal(AnalyzePhotoPayload{UserID: userID, ItemID: itemID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAnalyzePhoto, payload, asynq.MaxRetry(MaxRetry), asynq.Queue(QueueGenerate)), nil
}

func NewDailyOutfitsTask() *asynq.Task {
	return asynq.NewTask(TypeDailyOutfits, []byte("{}"), asynq.MaxRetry(1), asynq.Queue(QueueDefault))
}

// Enqueuer is the part of *asynq.Client the app needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Deps wires the task handlers. Everything except Store and the analyzer for the task at hand may be nil.
type Deps struct {
	Store      store.Store
	Outfits    services.OutfitGeneratorProvider
	Insights   services.InsightAnalyzerProvider
	Photos     services.PhotoAnalyzerProvider
	PhotoStore services.PhotoStoreProvider
	Weather    services.WeatherProvider
	Pusher     services.PusherProvider
	Enqueuer   Enqueuer
	Now        func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Deps) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeGenerateOutfits, d.HandleGenerateOutfitsTask)
	mux.HandleFunc(TypeWardrobeInsights, d.HandleWardrobeInsightsTask)
	mux.HandleFunc(TypeAnalyzePhoto, d.HandleAnalyzePhotoTask)
	mux.HandleFunc(TypeDailyOutfits, d.HandleDailyOutfitsTask)
}

func taskLogger(ctx context.Context, t *asynq.Task, userID uint) (context.Context, *zerolog.Logger) {
	logger := log.With().Str("task", t.Type()).Uint("user_id", userID).Logger()
	if id, ok := asynq.GetTaskID(ctx); ok {
		logger = logger.With().Str("task_id", id).Logger()
	}
	return logger.WithContext(ctx), &logger
}

func skipRetry(err error) error {
	return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
}

// classify decides between asynq retrying the task and giving up on it.
func classify(err error) error {
	if services.IsTerminalModelError(err) || errors.Is(err, store.ErrNotFound) {
		return skipRetry(err)
	}
	return err
}

func (d *Deps) HandleGenerateOutfitsTask(ctx context.Context, t *asynq.Task) error {
	var payload GenerateOutfitsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return skipRetry(err)
	}
	ctx, logger := taskLogger(ctx, t, payload.UserID)

	user, err := d.Store.GetUser(ctx, payload.UserID)
	if err != nil {
		logger.Warn().Err(err).Msg("user for outfit generation not loaded")
		return classify(err)
	}
	d.setGeneration(ctx, payload.UserID, models.GenerationPending, nil)

	items, err := d.Store.ListItems(ctx, payload.UserID)
	if err != nil {
		return d.failGeneration(ctx, payload.UserID, err)
	}
	if len(items) == 0 {
		msg := "Add a few items to your wardrobe first."
		d.setGeneration(ctx, payload.UserID, models.GenerationEmpty, &msg)
		logger.Info().Msg("no items, nothing to generate")
		return nil
	}

	now := d.now()
	request := payload.Environment
	if request.Season == nil && (request.Latitude == nil || request.Longitude == nil) {
		request.Latitude, request.Longitude = user.Latitude, user.Longitude
	}
	env := services.ResolveEnvironment(ctx, d.Weather, request, now)
	generation, err := d.Outfits.Generate(ctx, services.GenerateOutfitsInput{
		Items:       items,
		Profile:     user.Profile(),
		Environment: env,
		Now:         now,
	})
	if err != nil {
		return d.failGeneration(ctx, payload.UserID, err)
	}

	if len(generation.Outfits) == 0 {
		// keep the previous batch; an empty answer shouldn't wipe what the user is looking at
		msg := "No valid outfits this time. Try again or add more items."
		d.setGeneration(ctx, payload.UserID, models.GenerationEmpty, &msg)
		logger.Info().Int("proposed", generation.RawCount).Msg("no outfit survived validation")
		return nil
	}

	model := generation.Model
	batch := make([]models.OutfitRecord, 0, len(generation.Outfits))
	for _, outfit := range generation.Outfits {
		batch = append(batch, models.OutfitRecord{
			Slots:        outfit.Slots,
			Extras:       outfit.Extras,
			Occasion:     outfit.Occasion,
			Rationale:    outfit.Rationale,
			ContextLabel: generation.Conditions.ContextLabel,
			LLMModel:     &model,
		})
	}
	if err := d.Store.SaveSuggestionBatch(ctx, payload.UserID, batch); err != nil {
		return d.failGeneration(ctx, payload.UserID, err)
	}
	d.setGeneration(ctx, payload.UserID, models.GenerationCompleted, nil)
	logger.Info().Int("outfits", len(batch)).Str("model", model).Msg("suggestion batch saved")

	if d.Pusher != nil && user.ReceiveNotifications {
		if err := d.Pusher.Send(ctx, payload.UserID, services.OutfitsReadyNotification(len(batch))); err != nil {
			logger.Warn().Err(err).Msg("outfits ready push failed")
			sentry.CaptureException(err)
		}
	}
	return nil
}

func (d *Deps) setGeneration(ctx context.Context, userID uint, status models.GenerationStatus, msg *string) {
	now := d.now()
	err := d.Store.SetGenerationStatus(ctx, userID, models.GenerationState{Status: status, Error: msg, UpdatedAt: &now})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("status", string(status)).Msg("generation status not saved")
	}
}

// failGeneration records a failed run. While asynq still has retries left the status stays pending so
// the user doesn't see a failure that the next attempt may fix.
func (d *Deps) failGeneration(ctx context.Context, userID uint, err error) error {
	classified := classify(err)
	if willRetry(ctx, classified) {
		log.Ctx(ctx).Warn().Err(err).Msg("outfit generation failed, retrying")
		return classified
	}
	msg := services.UserMessage(err)
	d.setGeneration(ctx, userID, models.GenerationFailed, &msg)
	if !errors.Is(err, services.ErrModelsExhausted) {
		sentry.CaptureException(err)
	}
	log.Ctx(ctx).Warn().Err(err).Msg("outfit generation failed")
	return classified
}

// taskRetries reads the retry counters asynq puts on the handler context.
var taskRetries = func(ctx context.Context) (retried, maxRetry int, ok bool) {
	retried, ok = asynq.GetRetryCount(ctx)
	if !ok {
		return 0, 0, false
	}
	maxRetry, ok = asynq.GetMaxRetry(ctx)
	return retried, maxRetry, ok
}

// willRetry reports whether asynq runs the task again after the handler returns err.
func willRetry(ctx context.Context, err error) bool {
	if errors.Is(err, asynq.SkipRetry) {
		return false
	}
	retried, maxRetry, ok := taskRetries(ctx)
	return ok && retried < maxRetry
}

func (d *Deps) HandleWardrobeInsightsTask(ctx context.Context, t *asynq.Task) error {
	var payload WardrobeInsightsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return skipRetry(err)
	}
	ctx, logger := taskLogger(ctx, t, payload.UserID)

	user, err := d.Store.GetUser(ctx, payload.UserID)
	if err != nil {
		return classify(err)
	}
	items, err := d.Store.ListItems(ctx, payload.UserID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		logger.Info().Msg("empty wardrobe, skipping insights")
		return nil
	}

	stats := services.ComputeWardrobeStats(items)
	report, err := d.Insights.Analyze(ctx, stats, user.Profile(), d.now())
	if err != nil {
		logger.Warn().Err(err).Msg("wardrobe insights failed")
		if !errors.Is(err, services.ErrModelsExhausted) {
			sentry.CaptureException(err)
		}
		return classify(err)
	}
	report.OwnerID = payload.UserID
	if err := d.Store.SaveInsightReport(ctx, report); err != nil {
		return err
	}
	logger.Info().Str("report_id", report.ID).Msg("insight report saved")
	return nil
}

func (d *Deps) HandleAnalyzePhotoTask(ctx context.Context, t *asynq.Task) error {
	var payload AnalyzePhotoPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return skipRetry(err)
	}
	ctx, logger := taskLogger(ctx, t, payload.UserID)
	*logger = logger.With().Str("item_id", payload.ItemID).Logger()
	ctx = logger.WithContext(ctx)

	item, err := d.Store.GetItem(ctx, payload.UserID, payload.ItemID)
	if err != nil {
		return classify(err)
	}
	if item.PhotoKey == nil || *item.PhotoKey == "" {
		return d.failAnalysis(ctx, payload, skipRetry(errors.New("item has no photo")))
	}
	if err := d.Store.SetAnalysisStatus(ctx, payload.UserID, payload.ItemID, models.AnalysisPending, nil); err != nil {
		return classify(err)
	}

	content, err := d.PhotoStore.Download(ctx, *item.PhotoKey)
	if err != nil {
		return d.failAnalysis(ctx, payload, err)
	}
	analysis, err := d.Photos.Analyze(ctx, content)
	if err != nil {
		return d.failAnalysis(ctx, payload, classify(err))
	}

	// the model call takes a while; the merge runs against the row as it is now
	if _, err := d.Store.ApplyPhotoAnalysis(ctx, payload.UserID, payload.ItemID, analysis); err != nil {
		return classify(err)
	}
	logger.Info().Str("model", analysis.Model).Str("category", string(analysis.Category)).Msg("photo analyzed")
	return nil
}

func (d *Deps) failAnalysis(ctx context.Context, payload AnalyzePhotoPayload, err error) error {
	msg := services.UserMessage(err)
	if updateErr := d.Store.SetAnalysisStatus(ctx, payload.UserID, payload.ItemID, models.AnalysisFailed, &msg); updateErr != nil {
		log.Ctx(ctx).Error().Err(updateErr).Msg("analysis failure not saved")
	}
	log.Ctx(ctx).Warn().Err(err).Msg("photo analysis failed")
	return err
}

// HandleDailyOutfitsTask fans out one generation per opted-in user, dressing them for today's weather.
func (d *Deps) HandleDailyOutfitsTask(ctx context.Context, t *asynq.Task) error {
	users, err := d.Store.ListDailySuggestionUsers(ctx)
	if err != nil {
		return err
	}
	day := d.now().Format("2006-01-02")
	enqueued := 0
	for _, user := range users {
		task, err := NewGenerateOutfitsTask(user.ID, services.EnvironmentRequest{
			Latitude:  user.Latitude,
			Longitude: user.Longitude,
			Day:       services.WeatherToday,
		})
		if err != nil {
			return err
		}
		_, err = d.Enqueuer.EnqueueContext(ctx, task, asynq.TaskID(fmt.Sprintf("daily:%d:%s", user.ID, day)))
		if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
			log.Ctx(ctx).Error().Err(err).Uint("user_id", user.ID).Msg("daily generation not enqueued")
			sentry.CaptureException(err)
			continue
		}
		enqueued++
	}
	log.Ctx(ctx).Info().Int("users", len(users)).Int("enqueued", enqueued).Msg("daily outfits scheduled")
	return nil
}
