package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"closetai/models"
	"closetai/services"
	"closetai/store"

	"github.com/golang-jwt/jwt/v4"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

const TestJWTSecret = "closetai-test-secret"

func init() {
	if os.Getenv("JWT_SECRET") == "" {
		os.Setenv("JWT_SECRET", TestJWTSecret)
	}
}

func JsonString(model interface{}) string {
	bytes, _ := json.Marshal(model)
	return string(bytes)
}

func NewJSONRequest(method string, target string, param interface{}) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	return req
}

func GenerateUserToken(userID uint) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 72)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	t, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		log.Fatal().Err(err).Uint("user_id", userID).Msg("signing test token")
	}
	return t
}

func NewJSONAuthRequest(method string, target string, userID uint, param interface{}) *http.Request {
	req := NewJSONRequest(method, target, param)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", GenerateUserToken(userID)))
	return req
}

func NewAuthRequest(method string, target string, userID uint) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", GenerateUserToken(userID)))
	return req
}

// NewMultipartAuthRequest uploads content as the "photo" form field.
func NewMultipartAuthRequest(method string, target string, userID uint, fileName string, content []byte) *http.Request {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, _ := writer.CreateFormFile("photo", fileName)
	part.Write(content)
	writer.Close()

	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", GenerateUserToken(userID)))
	return req
}

func NewRefString(data string) *string {
	return &data
}

func FakeUser(ctx context.Context, s store.AccountStore, id uint) *models.UserAccount {
	user, err := s.EnsureUser(ctx, id)
	if err != nil {
		panic(err)
	}
	return user
}

func FakeItem(ctx context.Context, s store.Catalog, ownerID uint, name string, category models.Category, seasons ...string) *models.InventoryItem {
	item := &models.InventoryItem{OwnerID: ownerID, Name: name, Category: category, Seasons: seasons}
	if err := s.CreateItem(ctx, item); err != nil {
		panic(err)
	}
	return item
}

// BasicWardrobe seeds one item per slot category plus a bag.
func BasicWardrobe(ctx context.Context, s store.Catalog, ownerID uint) map[models.Category]*models.InventoryItem {
	return map[models.Category]*models.InventoryItem{
		models.CategoryTops:      FakeItem(ctx, s, ownerID, "White tee", models.CategoryTops),
		models.CategoryKnitwear:  FakeItem(ctx, s, ownerID, "Grey cardigan", models.CategoryKnitwear),
		models.CategoryOuterwear: FakeItem(ctx, s, ownerID, "Denim jacket", models.CategoryOuterwear),
		models.CategoryBottoms:   FakeItem(ctx, s, ownerID, "Black jeans", models.CategoryBottoms),
		models.CategoryShoes:     FakeItem(ctx, s, ownerID, "White sneakers", models.CategoryShoes),
		models.CategoryBags:      FakeItem(ctx, s, ownerID, "Tote", models.CategoryBags),
	}
}

type ScriptedReply struct {
	Text string
	Err  error
}

// ScriptedGateway answers per model from a queue. The last reply of a queue repeats.
type ScriptedGateway struct {
	mu      sync.Mutex
	replies map[string][]ScriptedReply
	Calls   []string
	Last    services.GatewayRequest
}

func NewScriptedGateway() *ScriptedGateway {
	return &ScriptedGateway{replies: map[string][]ScriptedReply{}}
}

func (g *ScriptedGateway) Reply(model string, text string) *ScriptedGateway {
	return g.add(model, ScriptedReply{Text: text})
}

func (g *ScriptedGateway) Fail(model string, err error) *ScriptedGateway {
	return g.add(model, ScriptedReply{Err: err})
}

func (g *ScriptedGateway) FailStatus(model string, status int) *ScriptedGateway {
	return g.Fail(model, &services.GatewayError{Kind: services.ErrorKindStatus, Model: model, StatusCode: status})
}

func (g *ScriptedGateway) add(model string, reply ScriptedReply) *ScriptedGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.replies[model] = append(g.replies[model], reply)
	return g
}

func (g *ScriptedGateway) Complete(ctx context.Context, modelID string, req services.GatewayRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = append(g.Calls, modelID)
	g.Last = req
	queue := g.replies[modelID]
	if len(queue) == 0 {
		return "", &services.GatewayError{Kind: services.ErrorKindStatus, Model: modelID, StatusCode: 404}
	}
	reply := queue[0]
	if len(queue) > 1 {
		g.replies[modelID] = queue[1:]
	}
	return reply.Text, reply.Err
}

func (g *ScriptedGateway) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Calls)
}

// Orchestrator builds a fallback orchestrator over the gateway, panicking on an empty model list.
func Orchestrator(gateway services.ModelGateway, models ...string) *services.FallbackOrchestrator {
	o, err := services.NewFallbackOrchestrator(gateway, models)
	if err != nil {
		panic(err)
	}
	return o
}

type PhotoStoreMock struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Deleted []string
	Err     error
}

func NewPhotoStoreMock() *PhotoStoreMock {
	return &PhotoStoreMock{Objects: map[string][]byte{}}
}

func (p *PhotoStoreMock) Upload(ctx context.Context, itemID string, content []byte) (string, error) {
	if p.Err != nil {
		return "", p.Err
	}
	if _, ok := services.DetectImageType(content); !ok {
		return "", services.ErrUnsupportedImage
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	key := services.PhotoKey(itemID)
	p.Objects[key] = content
	return key, nil
}

func (p *PhotoStoreMock) Download(ctx context.Context, key string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	content, ok := p.Objects[key]
	if !ok {
		return nil, fmt.Errorf("no object %s", key)
	}
	return content, nil
}

func (p *PhotoStoreMock) Delete(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.Objects, key)
	p.Deleted = append(p.Deleted, key)
	return nil
}

func (p *PhotoStoreMock) PresignGet(ctx context.Context, key string) (string, error) {
	return "https://photos.example.com/" + key, nil
}

type URLCacheMock struct{}

func (URLCacheMock) GetReadURL(ctx context.Context, objectKey string) (string, error) {
	return "https://photos.example.com/" + objectKey, nil
}

// EnqueuerRecorder stands in for *asynq.Client.
type EnqueuerRecorder struct {
	mu    sync.Mutex
	Tasks []*asynq.Task
	Err   error
	// OnEnqueue runs before the task is accepted or refused.
	OnEnqueue func(task *asynq.Task)
}

func (e *EnqueuerRecorder) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if e.OnEnqueue != nil {
		e.OnEnqueue(task)
	}
	if e.Err != nil {
		return nil, e.Err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Tasks = append(e.Tasks, task)
	return &asynq.TaskInfo{Type: task.Type(), Payload: task.Payload(), Queue: "generate"}, nil
}

func (e *EnqueuerRecorder) Types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	types := []string{}
	for _, t := range e.Tasks {
		types = append(types, t.Type())
	}
	return types
}

type PushedNotification struct {
	UserID       uint
	Notification services.Notification
}

type PusherRecorder struct {
	mu   sync.Mutex
	Sent []PushedNotification
}

func (p *PusherRecorder) Send(ctx context.Context, userID uint, n services.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Sent = append(p.Sent, PushedNotification{UserID: userID, Notification: n})
	return nil
}

type WeatherStub struct {
	Result *services.WeatherForecast
	Err       error
	Calls     int
}

func (w *WeatherStub) Forecast(ctx context.Context, latitude, longitude float64) (*services.WeatherForecast, error) {
	w.Calls++
	return w.Result, w.Err
}
