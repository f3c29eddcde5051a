package router

import (
	"github.com/astroguard/backend/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
)

// Handlers are the HTTP handlers mounted by RegisterAPI
type Handlers struct {
	System    *handler.SystemHandler
	Item      *handler.ItemHandler
	Detection *handler.DetectionHandler
	Stream    *handler.StreamHandler
}

// RegisterAPI mounts the health check at the root and every domain group
// under the versioned prefix. It returns the registered groups.
func (r *Router) RegisterAPI(h Handlers) []*DomainGroup {
	r.engine.GET("/health", h.System.Health)

	systemRoutes := NewDomainGroup("system", "")
	systemRoutes.GET("/health", "Service and database health", h.System.Health)
	systemRoutes.GET("/system/info", "Service version and uptime", h.System.GetSystemInfo)

	itemRoutes := NewDomainGroup("items", "/items")
	itemRoutes.GET("", "List inventory items", h.Item.List)
	itemRoutes.POST("/add", "Add quantity to an item", h.Item.Add)
	itemRoutes.POST("/:id/remove", "Remove one unit of an item", h.Item.Remove)
	itemRoutes.GET("/summary", "Quantities per item name", h.Item.Summary)
	itemRoutes.GET("/:id", "Get an inventory item", h.Item.Get)
	itemRoutes.GET("/stream", "Inventory change events over SSE", h.Stream.Stream)
	itemRoutes.GET("/ws", "Inventory change events over WebSocket", h.Stream.WebSocket)

	detectionRoutes := NewDomainGroup("detections", "/detections")
	detectionRoutes.POST("/image", "Detect objects in an image", h.Detection.AnalyzeImage)
	detectionRoutes.POST("/image/inventory", "Add image detections to inventory", h.Detection.AddImageToInventory)
	detectionRoutes.POST("/video", "Detect objects in a video", h.Detection.AnalyzeVideo)
	detectionRoutes.GET("/video/:id/frames/:index", "Browse processed video frames", h.Detection.Frame)
	detectionRoutes.POST("/video/:id/inventory", "Add video class counts to inventory", h.Detection.AddVideoToInventory)

	inventoryRoutes := NewDomainGroup("inventory", "/inventory")
	inventoryRoutes.POST("/reconcile", "Add explicit class counts to inventory", h.Detection.Reconcile)
	inventoryRoutes.GET("/aliases", "Detector label to item name table", h.Item.Aliases)

	groups := []*DomainGroup{systemRoutes, itemRoutes, detectionRoutes, inventoryRoutes}
	for _, g := range groups {
		r.Register(g)
	}
	r.Setup()
	return groups
}

// NoRoute answers unknown paths with the JSON error envelope
func NoRoute(c *gin.Context) {
	var h handler.BaseHandler
	h.NotFound(c, "Route not found")
}
