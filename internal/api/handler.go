package api

import (
	"log/slog"

	"github.com/shaiso/Outreach/internal/catalog"
	"github.com/shaiso/Outreach/internal/control"
	"github.com/shaiso/Outreach/internal/digest"
	"github.com/shaiso/Outreach/internal/engine"
	"github.com/shaiso/Outreach/internal/recipients"
	"github.com/shaiso/Outreach/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	registry   *catalog.Registry
	evaluator  *catalog.Evaluator
	resolver   *recipients.Resolver
	gateway    *engine.Gateway
	controller *control.Controller
	scheduler  *digest.Scheduler
	runRepo    *repo.RunRepo
	sendRepo   *repo.SendRepo
	digestRepo *repo.DigestRepo
	logger     *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Registry   *catalog.Registry
	Evaluator  *catalog.Evaluator
	Resolver   *recipients.Resolver
	Gateway    *engine.Gateway
	Controller *control.Controller
	Scheduler  *digest.Scheduler
	RunRepo    *repo.RunRepo
	SendRepo   *repo.SendRepo
	DigestRepo *repo.DigestRepo
	Logger     *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		registry:   cfg.Registry,
		evaluator:  cfg.Evaluator,
		resolver:   cfg.Resolver,
		gateway:    cfg.Gateway,
		controller: cfg.Controller,
		scheduler:  cfg.Scheduler,
		runRepo:    cfg.RunRepo,
		sendRepo:   cfg.SendRepo,
		digestRepo: cfg.DigestRepo,
		logger:     cfg.Logger,
	}
}
