package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ldgr/ldgr/internal/ledger"
	"github.com/ldgr/ldgr/internal/loader"
)

const (
	healthRoutePath         = "/healthz"
	documentsRoutePath      = "/api/documents"
	baseRoutePath           = "/api/base"
	taskRoutePath           = "/api/tasks/:taskID"
	summaryRoutePath        = "/api/summary"
	usersRoutePath          = "/api/users"
	intervalsRoutePath      = "/api/intervals"
	comparisonRoutePath     = "/api/comparison"
	whitelistRoutePath      = "/api/whitelist"
	whitelistAllRoutePath   = "/api/whitelist/all"
	exportRoutePath         = "/api/export"
	healthStatusKey         = "status"
	healthStatusOK          = "ok"
	errorKey                = "error"
	taskIDParamName         = "taskID"
	categoryQueryName       = "category"
	searchQueryName         = "search"
	verifiedQueryName       = "verified"
	privacyQueryName        = "privacy"
	whitelistQueryName      = "whitelist"
	sortQueryName           = "sort"
	pageQueryName           = "page"
	pageSizeQueryName       = "pageSize"
	windowStartQueryName    = "start"
	windowEndQueryName      = "end"
	defaultPage             = 1
	defaultPageSize         = 50
	minimumPageSize         = 10
	maximumPageSize         = 500
	invalidCategoryMessage  = "unknown category"
	invalidDocumentMessage  = "invalid document"
	invalidSelectionMessage = "invalid comparison selection"
	unknownUserMessage      = "unknown user"
	exportPersistFailedLog  = "export persistence failure"
	rebuildFailedLog        = "dataset rebuild failure"
	logFieldTask            = "task"
	ginModeRelease          = "release"
)

// ExportStore persists the most recent merged export document.
type ExportStore interface {
	SaveExport(document ledger.Document, savedAt time.Time) error
}

// RouterConfig configures the HTTP routing for the ledger dashboard API.
type RouterConfig struct {
	Session *Session
	Store   ExportStore
	Logger  *zap.Logger
	Clock   func() time.Time
}

// NewRouter constructs a Gin engine exposing the dashboard API.
func NewRouter(configuration RouterConfig) (*gin.Engine, error) {
	session := configuration.Session
	if session == nil {
		session = NewSession(SessionOptions{})
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := configuration.Clock
	if clock == nil {
		clock = time.Now
	}

	gin.SetMode(ginModeRelease)
	engine := gin.New()
	engine.Use(gin.Recovery())

	handler := dashboardHandler{
		session: session,
		tracker: newRebuildTracker(),
		store:   configuration.Store,
		logger:  logger,
		clock:   clock,
	}

	engine.GET(healthRoutePath, handler.healthStatus)
	engine.POST(documentsRoutePath, handler.addDocument)
	engine.POST(baseRoutePath, handler.setBase)
	engine.GET(taskRoutePath, handler.taskStatus)
	engine.GET(summaryRoutePath, handler.summarize)
	engine.GET(usersRoutePath, handler.listUsers)
	engine.GET(intervalsRoutePath, handler.listIntervals)
	engine.PUT(comparisonRoutePath, handler.selectComparison)
	engine.DELETE(comparisonRoutePath, handler.clearComparison)
	engine.POST(whitelistRoutePath, handler.toggleWhitelist)
	engine.POST(whitelistAllRoutePath, handler.whitelistCategory)
	engine.GET(exportRoutePath, handler.exportMerged)

	return engine, nil
}

type dashboardHandler struct {
	session *Session
	tracker *rebuildTracker
	store   ExportStore
	logger  *zap.Logger
	clock   func() time.Time
}

func (handler dashboardHandler) healthStatus(ginContext *gin.Context) {
	ginContext.JSON(http.StatusOK, map[string]string{healthStatusKey: healthStatusOK})
}

// addDocument accepts one parsed snapshot document and rebuilds the dataset
// in the background; the response carries a task identifier the client polls
// for completion.
func (handler dashboardHandler) addDocument(ginContext *gin.Context) {
	document, bound := handler.bindDocument(ginContext)
	if !bound {
		return
	}

	task := handler.tracker.CreateTask(len(document.Snapshots))
	go func() {
		rebuildError := handler.session.AddDocument(document)
		if rebuildError != nil {
			handler.logger.Error(rebuildFailedLog, zap.String(logFieldTask, task.Identifier), zap.Error(rebuildError))
		}
		handler.tracker.CompleteTask(task.Identifier, rebuildError)
	}()

	ginContext.JSON(http.StatusAccepted, task)
}

// setBase replaces the base document the dataset is folded on top of.
func (handler dashboardHandler) setBase(ginContext *gin.Context) {
	document, bound := handler.bindDocument(ginContext)
	if !bound {
		return
	}

	task := handler.tracker.CreateTask(len(document.Snapshots))
	go func() {
		rebuildError := handler.session.SetBase(document)
		if rebuildError != nil {
			handler.logger.Error(rebuildFailedLog, zap.String(logFieldTask, task.Identifier), zap.Error(rebuildError))
		}
		handler.tracker.CompleteTask(task.Identifier, rebuildError)
	}()

	ginContext.JSON(http.StatusAccepted, task)
}

func (handler dashboardHandler) taskStatus(ginContext *gin.Context) {
	snapshot, exists := handler.tracker.TaskSnapshot(ginContext.Param(taskIDParamName))
	if !exists {
		ginContext.JSON(http.StatusNotFound, map[string]string{errorKey: rebuildTaskNotFoundMessage})
		return
	}
	ginContext.JSON(http.StatusOK, snapshot)
}

type summaryResponse struct {
	Account       ledger.Account          `json:"account"`
	SnapshotCount int                     `json:"snapshotCount"`
	Counts        map[ledger.Category]int `json:"counts"`
	Trend         []ledger.TrendPoint     `json:"trend"`
}

func (handler dashboardHandler) summarize(ginContext *gin.Context) {
	handler.withDataset(ginContext, func(dataset *ledger.Dataset) {
		ginContext.JSON(http.StatusOK, summaryResponse{
			Account:       dataset.Account,
			SnapshotCount: len(dataset.MergedSnapshots),
			Counts:        dataset.Counts(),
			Trend:         ledger.SnapshotTrend(dataset),
		})
	})
}

type listedUser struct {
	*ledger.User
	AlphaHeader string `json:"alpha_header"`
}

type listUsersResponse struct {
	Category ledger.Category `json:"category"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
	Users    []listedUser    `json:"users"`
}

func (handler dashboardHandler) listUsers(ginContext *gin.Context) {
	handler.withDataset(ginContext, func(dataset *ledger.Dataset) {
		category, valid := handler.bindCategory(ginContext)
		if !valid {
			return
		}

		filters := ledger.Filters{
			Verified:  ledger.VerifiedFilter(ginContext.DefaultQuery(verifiedQueryName, string(ledger.VerifiedAny))),
			Privacy:   ledger.PrivacyFilter(ginContext.DefaultQuery(privacyQueryName, string(ledger.PrivacyAny))),
			Whitelist: ledger.WhitelistFilter(ginContext.DefaultQuery(whitelistQueryName, string(ledger.WhitelistAny))),
			Search:    ginContext.Query(searchQueryName),
		}
		sortMode := ledger.SortMode(ginContext.DefaultQuery(sortQueryName, string(ledger.SortAlpha)))
		page := queryInt(ginContext, pageQueryName, defaultPage)
		pageSize := clampValue(queryInt(ginContext, pageSizeQueryName, defaultPageSize), minimumPageSize, maximumPageSize)

		filtered := ledger.FilterUsers(ledger.CategoryUsers(dataset, category), filters)
		sorted := ledger.SortUsers(filtered, sortMode, ledger.LatestOrderIndex(dataset, category))
		paged := ledger.Paginate(sorted, page, pageSize)

		users := make([]listedUser, 0, len(paged))
		for _, user := range paged {
			users = append(users, listedUser{User: user, AlphaHeader: ledger.AlphaHeader(user.Username)})
		}

		ginContext.JSON(http.StatusOK, listUsersResponse{
			Category: category,
			Total:    len(sorted),
			Page:     page,
			PageSize: pageSize,
			Users:    users,
		})
	})
}

func (handler dashboardHandler) listIntervals(ginContext *gin.Context) {
	handler.withDataset(ginContext, func(dataset *ledger.Dataset) {
		category, valid := handler.bindCategory(ginContext)
		if !valid {
			return
		}

		windowStart := queryInt(ginContext, windowStartQueryName, 0)
		windowEnd := queryInt(ginContext, windowEndQueryName, len(dataset.MergedSnapshots)-1)

		ginContext.JSON(http.StatusOK, ledger.PresenceIntervals(dataset, category, windowStart, windowEnd, nil))
	})
}

type comparisonSelectionRequest struct {
	BaseIndex    int `json:"baseIndex"`
	CompareIndex int `json:"compareIndex"`
}

func (handler dashboardHandler) selectComparison(ginContext *gin.Context) {
	var selection comparisonSelectionRequest
	if bindError := ginContext.ShouldBindJSON(&selection); bindError != nil {
		ginContext.JSON(http.StatusBadRequest, map[string]string{errorKey: invalidSelectionMessage})
		return
	}
	if rebuildError := handler.session.SelectComparison(selection.BaseIndex, selection.CompareIndex); rebuildError != nil {
		handler.logger.Error(rebuildFailedLog, zap.Error(rebuildError))
		ginContext.JSON(http.StatusInternalServerError, map[string]string{errorKey: rebuildError.Error()})
		return
	}
	ginContext.Status(http.StatusNoContent)
}

func (handler dashboardHandler) clearComparison(ginContext *gin.Context) {
	if rebuildError := handler.session.ClearComparison(); rebuildError != nil {
		handler.logger.Error(rebuildFailedLog, zap.Error(rebuildError))
		ginContext.JSON(http.StatusInternalServerError, map[string]string{errorKey: rebuildError.Error()})
		return
	}
	ginContext.Status(http.StatusNoContent)
}

type whitelistRequest struct {
	Username    string `json:"username"`
	Whitelisted bool   `json:"whitelisted"`
}

func (handler dashboardHandler) toggleWhitelist(ginContext *gin.Context) {
	var request whitelistRequest
	if bindError := ginContext.ShouldBindJSON(&request); bindError != nil || request.Username == "" {
		ginContext.JSON(http.StatusBadRequest, map[string]string{errorKey: unknownUserMessage})
		return
	}
	changed, sessionError := handler.session.SetWhitelisted(request.Username, request.Whitelisted)
	if sessionError != nil {
		ginContext.JSON(http.StatusConflict, map[string]string{errorKey: sessionError.Error()})
		return
	}
	if !changed {
		ginContext.JSON(http.StatusNotFound, map[string]string{errorKey: unknownUserMessage})
		return
	}
	ginContext.Status(http.StatusNoContent)
}

type whitelistCategoryResponse struct {
	Whitelisted int `json:"whitelisted"`
}

func (handler dashboardHandler) whitelistCategory(ginContext *gin.Context) {
	category, valid := handler.bindCategory(ginContext)
	if !valid {
		return
	}
	changed, sessionError := handler.session.WhitelistCategory(category)
	if sessionError != nil {
		ginContext.JSON(http.StatusConflict, map[string]string{errorKey: sessionError.Error()})
		return
	}
	ginContext.JSON(http.StatusOK, whitelistCategoryResponse{Whitelisted: changed})
}

func (handler dashboardHandler) exportMerged(ginContext *gin.Context) {
	exportedAt := handler.clock()
	handler.withDataset(ginContext, func(dataset *ledger.Dataset) {
		document := ledger.MergedDocument(dataset, exportedAt)
		if handler.store != nil {
			if persistError := handler.store.SaveExport(document, exportedAt); persistError != nil {
				handler.logger.Warn(exportPersistFailedLog, zap.Error(persistError))
			}
		}
		ginContext.JSON(http.StatusOK, document)
	})
}

func (handler dashboardHandler) bindDocument(ginContext *gin.Context) (ledger.Document, bool) {
	var document ledger.Document
	if bindError := ginContext.ShouldBindJSON(&document); bindError != nil {
		ginContext.JSON(http.StatusBadRequest, map[string]string{errorKey: invalidDocumentMessage})
		return ledger.Document{}, false
	}
	if validationError := loader.ValidateDocument(document); validationError != nil {
		ginContext.JSON(http.StatusBadRequest, map[string]string{errorKey: validationError.Error()})
		return ledger.Document{}, false
	}
	return document, true
}

func (handler dashboardHandler) bindCategory(ginContext *gin.Context) (ledger.Category, bool) {
	category := ledger.Category(ginContext.DefaultQuery(categoryQueryName, string(ledger.CategoryFollowers)))
	if !category.Valid() {
		ginContext.JSON(http.StatusBadRequest, map[string]string{errorKey: invalidCategoryMessage})
		return category, false
	}
	return category, true
}

// withDataset runs read under the session view so handlers never traverse
// shared user records outside the session lock. Without a dataset it responds
// with a conflict.
func (handler dashboardHandler) withDataset(ginContext *gin.Context, read func(dataset *ledger.Dataset)) {
	viewError := handler.session.View(func(dataset *ledger.Dataset) error {
		read(dataset)
		return nil
	})
	if viewError != nil {
		ginContext.JSON(http.StatusConflict, map[string]string{errorKey: viewError.Error()})
	}
}

func queryInt(ginContext *gin.Context, parameterName string, fallback int) int {
	rawValue := ginContext.Query(parameterName)
	if rawValue == "" {
		return fallback
	}
	parsedValue, parseError := strconv.Atoi(rawValue)
	if parseError != nil {
		return fallback
	}
	return parsedValue
}

func clampValue(value int, lowest int, highest int) int {
	if value < lowest {
		return lowest
	}
	if value > highest {
		return highest
	}
	return value
}
