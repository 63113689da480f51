package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mememind-backend/internal/config"
	"mememind-backend/internal/model"
	"mememind-backend/internal/state"
	"mememind-backend/internal/upstream"
	"mememind-backend/internal/utils"
	"mememind-backend/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrEmptyPrompt      = errors.New("prompt is empty")
	ErrSuperseded       = errors.New("generation superseded by a newer request")
	ErrNoImage          = errors.New("no generated image to download")
	ErrInvalidStyle     = errors.New("invalid style")
	ErrTemplateNotFound = errors.New("template not found")
)

type Generator interface {
	Generate(ctx context.Context, req model.GenerationRequest) (string, error)
}

type Catalog interface {
	Fetch(ctx context.Context) ([]model.Template, error)
}

type ImageFetcher interface {
	Fetch(ctx context.Context, imageURL string) (*upstream.Image, error)
}

type Options struct {
	// CatalogLimit <= 0 表示不截断模板列表
	CatalogLimit     int
	DownloadFilename string
	SessionTTL       time.Duration
	CleanupInterval  time.Duration
}

// DownloadResult 要么携带图片字节，要么携带回退地址（直接打开原图）
type DownloadResult struct {
	Data        []byte
	ContentType string
	Filename    string
	FallbackURL string
}

func (r *DownloadResult) IsFallback() bool {
	return r.FallbackURL != ""
}

const subscriberBuffer = 8

type sessionEntry struct {
	mu          sync.Mutex
	state       state.State
	cancel      context.CancelFunc
	subscribers map[int]chan state.State
	nextSubID   int
	lastAccess  time.Time
	closed      bool
}

// MemeService 管理每个 UI 会话的提示词、模板、风格选择以及生成请求生命周期
type MemeService struct {
	generator Generator
	catalog   Catalog
	images    ImageFetcher
	opts      Options

	templatesMu sync.RWMutex
	templates   []model.Template

	mu       sync.RWMutex
	sessions map[string]*sessionEntry

	now func() time.Time
}

func NewMemeService(generator Generator, catalog Catalog, images ImageFetcher, opts Options) *MemeService {
	if opts.DownloadFilename == "" {
		opts.DownloadFilename = "generated-meme.jpg"
	}
	return &MemeService{
		generator: generator,
		catalog:   catalog,
		images:    images,
		opts:      opts,
		templates: []model.Template{},
		sessions:  make(map[string]*sessionEntry),
		now:       time.Now,
	}
}

// New 按配置装配上游客户端
func New(cfg *config.Config) *MemeService {
	generator := upstream.NewGeneratorClient(cfg.Generator.Endpoint(), utils.NewHTTPClient(cfg.Generator.Timeout))
	catalog := upstream.NewCatalogClient(cfg.Catalog.URL, utils.NewHTTPClient(cfg.Catalog.Timeout))
	images := upstream.NewDownloader(utils.NewHTTPClient(cfg.Download.Timeout), cfg.Download.MaxBytes)

	return NewMemeService(generator, catalog, images, Options{
		CatalogLimit:     cfg.Catalog.Limit,
		DownloadFilename: cfg.Download.Filename,
		SessionTTL:       cfg.Session.TTL,
		CleanupInterval:  cfg.Session.CleanupInterval,
	})
}

// LoadCatalog 启动时拉取一次模板目录；失败只记录日志，目录保持为空
func (s *MemeService) LoadCatalog(ctx context.Context) error {
	templates, err := s.catalog.Fetch(ctx)
	if err != nil {
		logger.Errorf("Error fetching meme templates: %v", err)
		return err
	}

	if s.opts.CatalogLimit > 0 && len(templates) > s.opts.CatalogLimit {
		templates = templates[:s.opts.CatalogLimit]
	}

	loaded := make([]model.Template, len(templates))
	copy(loaded, templates)

	s.templatesMu.Lock()
	s.templates = loaded
	s.templatesMu.Unlock()

	logger.Infof("Loaded %d meme templates", len(loaded))
	return nil
}

func (s *MemeService) Templates() []model.Template {
	s.templatesMu.RLock()
	defer s.templatesMu.RUnlock()

	result := make([]model.Template, len(s.templates))
	copy(result, s.templates)
	return result
}

func (s *MemeService) findTemplate(templateID model.TemplateID) (model.Template, bool) {
	s.templatesMu.RLock()
	defer s.templatesMu.RUnlock()

	for _, tpl := range s.templates {
		if tpl.ID == templateID {
			return tpl, true
		}
	}
	return model.Template{}, false
}

func (s *MemeService) CreateSession(profileID string) state.State {
	now := s.now()
	entry := &sessionEntry{
		state:       state.New(uuid.NewString(), now),
		subscribers: make(map[int]chan state.State),
		lastAccess:  now,
	}
	if profileID != "" {
		entry.state, _ = state.Reduce(entry.state, state.AttachProfile{ProfileID: profileID}, now)
	}

	s.mu.Lock()
	s.sessions[entry.state.ID] = entry
	s.mu.Unlock()

	logger.Debugf("Session %s created", entry.state.ID)
	return entry.state
}

func (s *MemeService) entry(sessionID string) (*sessionEntry, error) {
	s.mu.RLock()
	entry, exists := s.sessions[sessionID]
	s.mu.RUnlock()
	if !exists {
		return nil, ErrSessionNotFound
	}
	return entry, nil
}

// withEntry 在会话锁内执行 fn
func (s *MemeService) withEntry(sessionID string, fn func(e *sessionEntry) error) (state.State, error) {
	entry, err := s.entry(sessionID)
	if err != nil {
		return state.State{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.closed {
		return state.State{}, ErrSessionNotFound
	}
	entry.lastAccess = s.now()

	err = fn(entry)
	return entry.state, err
}

// dispatch 需持有 entry.mu
func (s *MemeService) dispatch(entry *sessionEntry, action state.Action) bool {
	next, changed := state.Reduce(entry.state, action, s.now())
	if !changed {
		return false
	}
	entry.state = next
	entry.publish()
	return true
}

func (e *sessionEntry) publish() {
	for _, ch := range e.subscribers {
		select {
		case ch <- e.state:
		default:
			// 订阅者跟不上时丢弃最旧的快照，保证最新状态能送达
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- e.state:
			default:
			}
		}
	}
}

func (s *MemeService) GetSession(sessionID string) (state.State, error) {
	return s.withEntry(sessionID, func(*sessionEntry) error { return nil })
}

func (s *MemeService) DeleteSession(sessionID string) error {
	s.mu.Lock()
	entry, exists := s.sessions[sessionID]
	if exists {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()

	if !exists {
		return ErrSessionNotFound
	}

	entry.mu.Lock()
	entry.close()
	entry.mu.Unlock()
	return nil
}

// close 需持有 entry.mu
func (e *sessionEntry) close() {
	if e.closed {
		return
	}
	e.closed = true
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	for id, ch := range e.subscribers {
		close(ch)
		delete(e.subscribers, id)
	}
}

func (s *MemeService) SetPrompt(sessionID, text string) (state.State, error) {
	return s.withEntry(sessionID, func(e *sessionEntry) error {
		s.dispatch(e, state.SetPrompt{Text: text})
		return nil
	})
}

// SelectTemplate 空 ID 表示取消模板选择
func (s *MemeService) SelectTemplate(sessionID string, templateID model.TemplateID) (state.State, error) {
	choice := model.NoTemplate()
	if templateID != "" {
		tpl, ok := s.findTemplate(templateID)
		if !ok {
			current, err := s.GetSession(sessionID)
			if err != nil {
				return current, err
			}
			return current, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
		}
		choice = model.Selected(tpl)
	}

	return s.withEntry(sessionID, func(e *sessionEntry) error {
		s.dispatch(e, state.SelectTemplate{Choice: choice})
		return nil
	})
}

func (s *MemeService) SelectStyle(sessionID string, style model.Style) (state.State, error) {
	if !style.Valid() {
		current, err := s.GetSession(sessionID)
		if err != nil {
			return current, err
		}
		return current, fmt.Errorf("%w: %q", ErrInvalidStyle, style)
	}

	return s.withEntry(sessionID, func(e *sessionEntry) error {
		s.dispatch(e, state.SelectStyle{Style: style})
		return nil
	})
}

// Reset 对应关闭弹窗，同时放弃进行中的生成请求
func (s *MemeService) Reset(sessionID string) (state.State, error) {
	return s.withEntry(sessionID, func(e *sessionEntry) error {
		if e.cancel != nil {
			e.cancel()
			e.cancel = nil
		}
		s.dispatch(e, state.Reset{})
		return nil
	})
}

func (s *MemeService) AttachProfile(sessionID, profileID string) (state.State, error) {
	return s.withEntry(sessionID, func(e *sessionEntry) error {
		s.dispatch(e, state.AttachProfile{ProfileID: profileID})
		return nil
	})
}

// Generate 发起一次生成。提示词为空时不发请求、不改状态。
// 同一会话上的新请求会取消尚未返回的旧请求，旧请求的结果被丢弃并返回 ErrSuperseded。
func (s *MemeService) Generate(ctx context.Context, sessionID string) (state.State, error) {
	entry, err := s.entry(sessionID)
	if err != nil {
		return state.State{}, err
	}

	requestID := uuid.NewString()

	entry.mu.Lock()
	if entry.closed {
		entry.mu.Unlock()
		return state.State{}, ErrSessionNotFound
	}
	entry.lastAccess = s.now()
	if !entry.state.CanGenerate() {
		current := entry.state
		entry.mu.Unlock()
		return current, ErrEmptyPrompt
	}

	if entry.cancel != nil {
		logger.Debugf("Session %s: superseding request %s", sessionID, entry.state.PendingRequestID)
		entry.cancel()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	entry.cancel = cancel

	s.dispatch(entry, state.GenerationStarted{RequestID: requestID})
	genReq := state.ComposeRequest(entry.state)
	entry.mu.Unlock()

	logger.WithFields(map[string]interface{}{
		"session_id": sessionID,
		"request_id": requestID,
		"type":       genReq.Type,
	}).Info("Generating meme")

	imageURL, genErr := s.generator.Generate(reqCtx, genReq)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	cancel()

	if entry.closed {
		return state.State{}, ErrSessionNotFound
	}
	if entry.state.PendingRequestID != requestID {
		logger.Debugf("Session %s: discarding outcome of request %s", sessionID, requestID)
		return entry.state, ErrSuperseded
	}
	entry.cancel = nil

	if genErr != nil {
		message := userMessage(genErr)
		logger.Warnf("Session %s: generation failed: %v", sessionID, genErr)
		s.dispatch(entry, state.GenerationFailed{RequestID: requestID, Message: message})
		return entry.state, nil
	}

	s.dispatch(entry, state.GenerationSucceeded{RequestID: requestID, ImageURL: imageURL})
	return entry.state, nil
}

func userMessage(err error) string {
	var genErr *upstream.GenerationError
	if errors.As(err, &genErr) {
		return genErr.UserMessage()
	}
	// 非分类错误视为调用本身抛出，与网络错误同等处理
	return model.MessageNetworkError
}

// Download 拉取图片字节；任何失败都退回为直接打开原图地址，不向用户报错
func (s *MemeService) Download(ctx context.Context, sessionID string) (*DownloadResult, error) {
	var imageURL string
	if _, err := s.withEntry(sessionID, func(e *sessionEntry) error {
		if !e.state.CanDownload() {
			return ErrNoImage
		}
		imageURL = e.state.ImageURL
		return nil
	}); err != nil {
		return nil, err
	}

	img, err := s.images.Fetch(ctx, imageURL)
	if err != nil {
		logger.Warnf("Session %s: download failed, falling back to direct link: %v", sessionID, err)
		return &DownloadResult{FallbackURL: imageURL}, nil
	}

	return &DownloadResult{
		Data:        img.Data,
		ContentType: img.ContentType,
		Filename:    s.opts.DownloadFilename,
	}, nil
}

// Subscribe 返回状态快照流，首个元素是当前状态。会话删除时通道关闭。
func (s *MemeService) Subscribe(sessionID string) (<-chan state.State, func(), error) {
	ch := make(chan state.State, subscriberBuffer)
	var subID int

	_, err := s.withEntry(sessionID, func(e *sessionEntry) error {
		subID = e.nextSubID
		e.nextSubID++
		e.subscribers[subID] = ch
		ch <- e.state
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			entry, err := s.entry(sessionID)
			if err != nil {
				return
			}
			entry.mu.Lock()
			defer entry.mu.Unlock()
			if existing, ok := entry.subscribers[subID]; ok && existing == ch {
				delete(entry.subscribers, subID)
				close(ch)
			}
		})
	}

	return ch, unsubscribe, nil
}

func (s *MemeService) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// RunCleanup 定期清理超过 TTL 未访问且没有进行中请求的会话，直到 ctx 结束
func (s *MemeService) RunCleanup(ctx context.Context) error {
	if s.opts.SessionTTL <= 0 || s.opts.CleanupInterval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if removed := s.cleanupOldSessions(); removed > 0 {
				logger.Infof("Cleaned up %d idle sessions", removed)
			}
		}
	}
}

func (s *MemeService) cleanupOldSessions() int {
	cutoff := s.now().Add(-s.opts.SessionTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, entry := range s.sessions {
		entry.mu.Lock()
		if entry.cancel == nil && entry.lastAccess.Before(cutoff) {
			entry.close()
			delete(s.sessions, id)
			removed++
		}
		entry.mu.Unlock()
	}
	return removed
}

// Close 取消所有进行中的请求并关闭全部订阅
func (s *MemeService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entry := range s.sessions {
		entry.mu.Lock()
		entry.close()
		entry.mu.Unlock()
		delete(s.sessions, id)
	}
}
