package handlers

import "github.com/gin-gonic/gin"

// Mount registers the API. public holds routes reachable without a token;
// protected holds the rest.
func (h *Handlers) Mount(public, protected *gin.RouterGroup) {
	// Auth
	public.POST("/auth/login", h.Login)
	public.POST("/auth/password", h.ChangePassword)
	public.GET("/auth/me", h.Me)

	// Clients
	protected.POST("/clients", h.RegisterClient)
	protected.GET("/clients", h.ListClients)
	protected.GET("/clients/search", h.SearchClients)
	protected.GET("/clients/by-name/:name", h.FindClientByName)
	protected.GET("/clients/:id", h.GetClient)
	protected.GET("/clients/:id/services/approved", h.ListClientApproved)
	protected.GET("/clients/:id/documents", h.ListClientDocuments)
	protected.POST("/clients/:id/documents", h.UploadDocument)

	// Employees
	protected.POST("/employees", h.RegisterEmployee)
	protected.GET("/employees", h.ListEmployees)
	protected.GET("/employees/by-user/:userId", h.EmployeeIDByUser)
	protected.GET("/employees/:id", h.GetEmployee)
	protected.DELETE("/employees/:id", h.DeleteEmployee)
	for _, list := range []string{"todo", "in-progress", "completed", "finalized", "shared"} {
		protected.GET("/employees/:id/services/"+list, h.EmployeeServices(list))
	}
	protected.GET("/notaries", h.ListNotaries)

	// Services
	protected.POST("/services", h.CreateService)
	protected.GET("/services", h.ListServices)
	protected.GET("/services/deleted", h.ListDeletedServices)
	protected.GET("/services/stats", h.ServiceStats)
	protected.GET("/services/pending-approval", h.ListPendingApproval)
	protected.GET("/services/approved", h.ListApproved)
	protected.GET("/services/code/:code", h.GetServiceByCode)
	protected.GET("/services/:id", h.GetService)
	protected.PATCH("/services/:id", h.PatchService)
	protected.DELETE("/services/:id", h.SoftDeleteService)
	protected.DELETE("/services/:id/hard", h.HardDeleteService)
	protected.POST("/services/:id/restore", h.RestoreService)
	protected.POST("/services/:id/initialize", h.InitializeService)
	protected.POST("/services/:id/forward", h.ForwardService)
	protected.POST("/services/:id/approve", h.ApproveService)
	protected.POST("/services/:id/reject", h.RejectService)
	protected.PUT("/services/:id/employees/:employeeId", h.AssignEmployee)
	protected.GET("/services/:id/employees", h.ListAssignedEmployees)
	protected.GET("/services/:id/documents", h.ListServiceDocuments)
	protected.POST("/services/:id/documents/:docId", h.AttachDocument)

	// Archive
	protected.POST("/services/:id/archive", h.ArchiveService)
	protected.POST("/services/:id/unarchive", h.UnarchiveService)
	protected.PUT("/services/:id/archived", h.SetServiceArchived)
	protected.GET("/archive/services", h.ListArchived)
	protected.GET("/archive/services/:id", h.GetArchived)
	protected.DELETE("/archive/services/:id", h.DeleteArchived)

	// Documents
	protected.PUT("/documents/:id", h.ReplaceDocument)
	protected.GET("/documents/:id/content", h.DownloadDocument)

	// Maintenance
	protected.POST("/maintenance/cleanup", h.RunCleanup)
}
