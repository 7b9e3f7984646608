package controller

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"souschef/service"
)

// Deps are the services the HTTP layer serves.
type Deps struct {
	CORSOrigin string
	Tokens     *service.TokenService
	Users      *service.UserService
	Chats      *service.ChatService
	Messages   *service.MessageService
	Recipes    *service.RecipeService
	Active     *service.ActiveRecipeService
	Tools      *service.ToolService
	Images     *service.ImageService
	Assistant  *service.AssistantService
}

var registerTagNames sync.Once

// useJSONFieldNames makes binding errors name fields as clients send them.
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
}

func NewRouter(deps Deps) *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORSMiddleware(deps.CORSOrigin))
	r.Use(RequestIDMiddleware())
	r.Use(LogMiddleware())

	auth := AuthController{Tokens: deps.Tokens}
	authed := auth.TokenAuthMiddleware()

	chat := ChatController{Chats: deps.Chats, Messages: deps.Messages, Active: deps.Active, Assistant: deps.Assistant}
	image := ImageController{Images: deps.Images}

	api := r.Group("/api", authed)
	{
		api.POST("/chat", chat.Chat)
		api.GET("/image", image.Get)
		api.POST("/upload", image.Upload)
	}

	v1 := r.Group("/v1")
	{
		user := UserController{Users: deps.Users}
		v1.POST("/user/register", user.Register)
		v1.POST("/user/login", user.Login)

		//Refresh the token
		v1.POST("/token/refresh", auth.Refresh)

		private := v1.Group("", authed)

		private.GET("/chats", chat.List)
		private.POST("/chats", chat.Create)
		private.PUT("/chats/:id", chat.Rename)
		private.DELETE("/chats/:id", chat.Delete)
		private.GET("/chats/:id/messages", chat.History)
		private.GET("/chats/:id/active-recipes", chat.ActiveRecipes)

		active := ActiveRecipeController{Active: deps.Active}
		private.GET("/active-recipes", active.List)
		private.POST("/active-recipes", active.Add)
		private.DELETE("/active-recipes", active.Remove)
		private.POST("/cooking/start", active.StartCooking)

		recipe := RecipeController{Recipes: deps.Recipes}
		private.GET("/recipes", recipe.List)
		private.POST("/recipes", recipe.Create)
		private.POST("/recipes/import", recipe.Import)
		private.GET("/recipes/:id", recipe.Get)
		private.PUT("/recipes/:id", recipe.Update)
		private.DELETE("/recipes/:id", recipe.Delete)
		private.GET("/recipes/:id/snapshots", recipe.Snapshots)
		private.GET("/recipes/:id/html", recipe.HTML)
		private.POST("/recipes/:id/share", recipe.Share)

		tool := ToolController{Tools: deps.Tools}
		private.POST("/tool-output", tool.Output)
		private.POST("/tool-decisions", tool.Decide)
	}

	return r
}
