package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"

	"souschef/controller"
	"souschef/model"
	"souschef/platform"
	"souschef/service"
)

var logger = platform.Logger

func main() {
	cfg := platform.LoadConfig(".env")

	platform.InitFile(cfg.LogDir, "gin")
	platform.InitAppLogger(cfg.LogDir, "souschef")
	logger.Info("Server started...")

	if cfg.AccessSecret == "" {
		logger.Fatal("ACCESS_SECRET must be set")
	}

	//init database
	if err := platform.InitDB(cfg); err != nil {
		logger.Fatalf("failed to init database: %s", err)
	}
	if err := model.InstallDB(platform.DB); err != nil {
		logger.Fatalf("failed to migrate database: %s", err)
	}

	platform.InitLLMClient(cfg)
	if err := platform.InitBucket(context.Background(), cfg); err != nil {
		logger.Fatalf("failed to init object storage: %s", err)
	}

	db := platform.DB
	tokens := &service.TokenService{Secret: []byte(cfg.AccessSecret)}
	chats := &service.ChatService{DB: db}
	messages := &service.MessageService{DB: db, Bucket: platform.ObjectStore}
	images := &service.ImageService{DB: db, Bucket: platform.ObjectStore}

	deps := controller.Deps{
		CORSOrigin: cfg.CORSOrigin,
		Tokens:     tokens,
		Users:      &service.UserService{DB: db, Tokens: tokens},
		Chats:      chats,
		Messages:   messages,
		Recipes:    &service.RecipeService{DB: db, Mailer: service.NewSMTPMailer(cfg)},
		Active:     &service.ActiveRecipeService{DB: db},
		Tools:      &service.ToolService{DB: db},
		Images:     images,
		Assistant: &service.AssistantService{
			Messages: messages,
			Chats:    chats,
			Model:    &service.OpenAIModel{Client: platform.LLMClient, Model: cfg.LLMModel},
		},
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := controller.NewRouter(deps)

	c, err := service.NewScheduler(cfg.OrphanSweepSpec, images, cfg.OrphanMaxAge)
	if err != nil {
		logger.Fatalf("failed to schedule jobs: %s", err)
	}
	c.Start()
	defer c.Stop()

	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatalf("server stopped: %s", err)
	}
}
