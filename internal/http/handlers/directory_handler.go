// Directory HTTP handlers: client and employee registration and lookup.
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-studio-backend/internal/domain"
	"github.com/tbourn/go-studio-backend/internal/services"
)

// RegisterPersonRequest carries the account fields of a new client.
type RegisterPersonRequest struct {
	Email      string `json:"email" binding:"required,email" example:"mario.rossi@example.com"`
	GivenName  string `json:"given_name" binding:"required" example:"Mario"`
	FamilyName string `json:"family_name" binding:"required" example:"Rossi"`
	Phone      string `json:"phone,omitempty" example:"+39 333 1234567"`
	Password   string `json:"password" binding:"required" example:"s3cret-pass"`
}

func (r RegisterPersonRequest) input() services.PersonInput {
	return services.PersonInput{
		Email:      r.Email,
		GivenName:  r.GivenName,
		FamilyName: r.FamilyName,
		Phone:      r.Phone,
		Password:   r.Password,
	}
}

// RegisterEmployeeRequest adds the role and, for notaries, the registration
// code.
type RegisterEmployeeRequest struct {
	RegisterPersonRequest
	Role       string `json:"role" binding:"required" example:"notary"`
	NotaryCode *int   `json:"notary_code,omitempty" example:"4512"`
}

// ListClientsResponse wraps a page of clients.
type ListClientsResponse struct {
	Clients    []domain.Client `json:"clients"`
	Pagination Pagination      `json:"pagination"`
}

// EmployeeIDResponse carries the employee id of a user.
type EmployeeIDResponse struct {
	EmployeeID uint `json:"employee_id"`
}

// RegisterClient godoc
// @ID          registerClient
// @Summary     Register a client
// @Tags        Clients
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.RegisterPersonRequest  true  "Client account"
// @Success     201  {object}  domain.Client
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "Email taken"
// @Router      /clients [post]
func (h *Handlers) RegisterClient(c *gin.Context) {
	var req RegisterPersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email, given_name, family_name and password are required")
		return
	}
	cl, err := h.dir.RegisterClient(c.Request.Context(), req.input())
	if err != nil {
		failErr(c, err)
		return
	}
	created(c, cl.ID, cl)
}

// ListClients godoc
// @ID          listClients
// @Summary     List clients (paginated)
// @Tags        Clients
// @Produce     json
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListClientsResponse
// @Router      /clients [get]
func (h *Handlers) ListClients(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.dir.ListClients(c.Request.Context(), page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListClientsResponse{Clients: nonNil(items), Pagination: newPagination(page, pageSize, total)})
}

// GetClient godoc
// @ID          getClient
// @Summary     Client details
// @Tags        Clients
// @Produce     json
// @Param       id  path  int  true  "Client ID"
// @Success     200  {object}  domain.Client
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /clients/{id} [get]
func (h *Handlers) GetClient(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	cl, err := h.dir.GetClient(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, cl)
}

// SearchClients godoc
// @ID          searchClients
// @Summary     Search clients by name
// @Description Case-insensitive match on given or family name. A blank query returns an empty list.
// @Tags        Clients
// @Produce     json
// @Param       q  query  string  false  "Search term"  example(ross)
// @Success     200  {array}  domain.Client
// @Router      /clients/search [get]
func (h *Handlers) SearchClients(c *gin.Context) {
	items, err := h.dir.SearchClients(c.Request.Context(), c.Query("q"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, nonNil(items))
}

// FindClientByName godoc
// @ID          findClientByName
// @Summary     First client with the given name
// @Tags        Clients
// @Produce     json
// @Param       name  path  string  true  "Given name"
// @Success     200  {object}  domain.Client
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /clients/by-name/{name} [get]
func (h *Handlers) FindClientByName(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required")
		return
	}
	cl, err := h.dir.FindClientByName(c.Request.Context(), name)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, cl)
}

// RegisterEmployee godoc
// @ID          registerEmployee
// @Summary     Register an employee
// @Description Notaries need a positive notary_code; other roles must not send one.
// @Tags        Employees
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.RegisterEmployeeRequest  true  "Employee account"
// @Success     201  {object}  domain.Employee
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "Email or notary code taken"
// @Router      /employees [post]
func (h *Handlers) RegisterEmployee(c *gin.Context) {
	var req RegisterEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email, given_name, family_name, password and role are required")
		return
	}
	e, err := h.dir.RegisterEmployee(c.Request.Context(), req.input(), req.Role, req.NotaryCode)
	if err != nil {
		failErr(c, err)
		return
	}
	created(c, e.ID, e)
}

// ListEmployees godoc
// @ID          listEmployees
// @Summary     All employees
// @Tags        Employees
// @Produce     json
// @Success     200  {array}  domain.Employee
// @Router      /employees [get]
func (h *Handlers) ListEmployees(c *gin.Context) {
	items, err := h.dir.ListEmployees(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, nonNil(items))
}

// ListNotaries godoc
// @ID          listNotaries
// @Summary     Employees with the notary role
// @Tags        Employees
// @Produce     json
// @Success     200  {array}  domain.Employee
// @Router      /notaries [get]
func (h *Handlers) ListNotaries(c *gin.Context) {
	items, err := h.dir.ListNotaries(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, nonNil(items))
}

// GetEmployee godoc
// @ID          getEmployee
// @Summary     Employee details
// @Tags        Employees
// @Produce     json
// @Param       id  path  int  true  "Employee ID"
// @Success     200  {object}  domain.Employee
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /employees/{id} [get]
func (h *Handlers) GetEmployee(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	e, err := h.dir.GetEmployee(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, e)
}

// EmployeeIDByUser godoc
// @ID          employeeIdByUser
// @Summary     Resolve a user's employee id
// @Tags        Employees
// @Produce     json
// @Param       userId  path  int  true  "User ID"
// @Success     200  {object}  handlers.EmployeeIDResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /employees/by-user/{userId} [get]
func (h *Handlers) EmployeeIDByUser(c *gin.Context) {
	uid, err := strconv.ParseUint(strings.TrimSpace(c.Param("userId")), 10, 64)
	if err != nil || uid == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "userId must be a positive integer")
		return
	}
	id, err := h.dir.EmployeeIDByUser(c.Request.Context(), uint(uid))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, EmployeeIDResponse{EmployeeID: id})
}

// DeleteEmployee godoc
// @ID          deleteEmployee
// @Summary     Delete an employee and its account
// @Description Services the employee opened are kept.
// @Tags        Employees
// @Param       id  path  int  true  "Employee ID"
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /employees/{id} [delete]
func (h *Handlers) DeleteEmployee(c *gin.Context) { h.mutate(c, h.dir.DeleteEmployee) }
