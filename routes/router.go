package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/efficiency_backend/middlewares"
	"github.com/mmdatafocus/efficiency_backend/models"
	"github.com/mmdatafocus/efficiency_backend/workflow"
)

// Handlers carries the engine/service instances the route handlers share.
type Handlers struct {
	Engine     *workflow.ValidationEngine
	Efficiency *workflow.EfficiencyEngine
	Splits     *workflow.SplitService
	Importer   *workflow.ImportService
}

func NewHandlers() *Handlers {
	store := workflow.NewGormStore()
	engine := workflow.NewValidationEngine(store)
	return &Handlers{
		Engine:     engine,
		Efficiency: workflow.NewEfficiencyEngine(store),
		Splits:     workflow.NewSplitService(store),
		Importer:   workflow.NewImportService(engine),
	}
}

func RegisterRoutes(r *gin.Engine, h *Handlers) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	api.Use(middlewares.AuthMiddleware())

	auth := api.Group("/auth")
	{
		auth.POST("/login", login)
		auth.GET("/me", middlewares.RequireAuth(), me)
	}

	adminOnly := middlewares.RequireRoles(string(models.RoleAdmin))
	supervisorUp := middlewares.RequireRoles(string(models.RoleSupervisor), string(models.RoleAdmin))

	employees := api.Group("/employees", middlewares.RequireAuth())
	{
		employees.GET("", listEmployees)
		employees.GET("/:id", getEmployee)
		employees.POST("", adminOnly, createEmployee)
		employees.PUT("/:id", adminOnly, updateEmployee)
		employees.DELETE("/:id", adminOnly, deleteEmployee)
	}

	machines := api.Group("/machines", middlewares.RequireAuth())
	{
		machines.GET("", listMachines)
		machines.GET("/:id", getMachine)
		machines.POST("", supervisorUp, createMachine)
		machines.PUT("/:id", supervisorUp, updateMachine)
		machines.DELETE("/:id", adminOnly, deleteMachine)
	}

	activityCodes := api.Group("/activity-codes", middlewares.RequireAuth())
	{
		activityCodes.GET("", listActivityCodes)
		activityCodes.GET("/:id", getActivityCode)
		activityCodes.POST("", supervisorUp, createActivityCode)
		activityCodes.PUT("/:id", supervisorUp, updateActivityCode)
		activityCodes.DELETE("/:id", adminOnly, deleteActivityCode)
	}

	workOrders := api.Group("/work-orders", middlewares.RequireAuth())
	{
		workOrders.GET("", listWorkOrders)
		workOrders.GET("/:id", getWorkOrder)
		workOrders.POST("", supervisorUp, createWorkOrder)
		workOrders.PUT("/:id", supervisorUp, updateWorkOrder)
		workOrders.DELETE("/:id", adminOnly, deleteWorkOrder)
	}

	jobCards := api.Group("/job-cards", middlewares.RequireAuth())
	{
		jobCards.GET("", listJobCards)
		jobCards.GET("/:id", getJobCard)
		jobCards.POST("", h.createJobCard)
		jobCards.PUT("/:id", h.updateJobCard)
		jobCards.DELETE("/:id", supervisorUp, deleteJobCard)
	}

	supervisor := api.Group("/supervisor", middlewares.RequireAuth(), supervisorUp)
	{
		supervisor.POST("/assign", h.assignWork)
		supervisor.GET("/validations", listValidations)
		supervisor.POST("/validations/:id/resolve", resolveValidation)
		supervisor.GET("/job-cards/review", listJobCardsForReview)
		supervisor.POST("/job-cards/:id/approve", h.approveJobCard)
		supervisor.POST("/job-cards/:id/reject", h.rejectJobCard)
	}

	efficiency := api.Group("/efficiency", middlewares.RequireAuth())
	{
		efficiency.GET("/team/:team", supervisorUp, h.teamEfficiency)
		efficiency.GET("/:employee_id", h.employeeEfficiency)
	}

	api.GET("/splits/:work_order_id", middlewares.RequireAuth(), supervisorUp, h.workOrderSplits)
	api.POST("/import/job-cards", middlewares.RequireAuth(), supervisorUp, h.importJobCards)
	api.GET("/reports/efficiency.xlsx", middlewares.RequireAuth(), supervisorUp, efficiencyReport)
}
