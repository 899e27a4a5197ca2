package router

import (
	"community-intelligence-backend/controller"
	"community-intelligence-backend/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Register() *gin.Engine {
	r := gin.Default()
	r.Use(middleware.CORSMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		public := api.Group("/user")
		{
			public.POST("/register", controller.UserRegister)
			public.POST("/login", controller.UserLogin)
		}

		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			protected.POST("/imports", controller.SubmitImport)
			protected.GET("/imports", controller.GetImportJobs)
			protected.GET("/imports/:id", controller.GetImportJob)
			protected.POST("/imports/:id/cancel", controller.CancelImportJob)
			protected.POST("/imports/:id/resume", controller.ResumeImportJob)
			protected.GET("/imports/:id/events", controller.ImportJobEvents)
			protected.GET("/imports/:id/ws", controller.ImportJobWebSocket)

			protected.GET("/associations/:id/properties", controller.GetAssociationProperties)
			protected.GET("/associations/:id/documents", controller.GetAssociationDocuments)
			protected.GET("/documents/:id/urls", controller.GetDocumentURLs)

			protected.GET("/parse", controller.ParsePath)
		}
	}

	return r
}
