package server

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/example/codecycle/internal/excel"
	"github.com/example/codecycle/internal/review"
	"github.com/example/codecycle/pkg/models"
)

type loginRequest struct {
	Username      string `json:"username"`
	SessionCookie string `json:"sessionCookie"`
	CSRFToken     string `json:"csrfToken"`
}

type loginResponse struct {
	Success   bool      `json:"success"`
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type submitRequest struct {
	Slug   string `json:"slug"`
	Result string `json:"result"`
}

type submitResponse struct {
	Success bool `json:"success"`
	*models.SubmitResult
}

type syncResponse struct {
	Count    int               `json:"count"`
	Strategy string            `json:"strategy"`
	Created  int               `json:"created"`
	Updated  int               `json:"updated"`
	Problems []*models.Problem `json:"problems"`
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}

	session, err := s.auth.Login(c.Request().Context(), req.Username, req.SessionCookie, req.CSRFToken)
	if errors.Is(err, review.ErrNotAuthenticated) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid LeetCode credentials. Please check your cookies.")
	}
	if err != nil {
		return err
	}

	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   int(s.auth.Sessions().TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(http.StatusOK, loginResponse{
		Success:   true,
		Username:  session.User.LeetUsername,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	})
}

func (s *Server) handleLogout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleToday(c echo.Context) error {
	queue, err := s.reviews.BuildTodayQueue(c.Request().Context(), currentUser(c), s.reviews.Now())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, queue)
}

func (s *Server) handleSubmit(c echo.Context) error {
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if strings.TrimSpace(req.Slug) == "" || req.Result == "" {
		return badRequest("Missing slug or result")
	}

	result, err := s.reviews.SubmitReview(c.Request().Context(), currentUser(c), req.Slug, models.ReviewOutcome(req.Result))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, submitResponse{Success: true, SubmitResult: result})
}

func (s *Server) handleGetSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, currentUser(c).Settings)
}

func (s *Server) handleUpdateSettings(c echo.Context) error {
	var update models.UpdateSettings
	if err := c.Bind(&update); err != nil {
		return badRequest("invalid request body")
	}
	settings, err := s.reviews.UpdateSettings(c.Request().Context(), currentUser(c), &update)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, settings)
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.reviews.Stats(c.Request().Context(), currentUser(c), s.reviews.Now())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleExport(c echo.Context) error {
	user := currentUser(c)
	logs, err := s.history.ListReviewLogs(c.Request().Context(), user.ID)
	if err != nil {
		return errors.Wrapf(review.ErrRepositoryUnavailable, "list review logs: %v", err)
	}

	var buf bytes.Buffer
	if err := excel.ExportHistory(&buf, logs); err != nil {
		return errors.Wrap(err, "failed to export history")
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="codecycle-history.xlsx"`)
	return c.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (s *Server) handleSync(c echo.Context) error {
	res, err := s.syncer.Sync(c.Request().Context(), currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, syncResponse{
		Count:    res.Fetched,
		Strategy: string(res.Strategy),
		Created:  res.Created,
		Updated:  res.Updated,
		Problems: res.Problems,
	})
}

func (s *Server) handleProfile(c echo.Context) error {
	user := currentUser(c)
	creds, err := s.auth.Credentials(user)
	if err != nil {
		return err
	}
	profile, err := s.profiles.FetchUserProfile(c.Request().Context(), user.LeetUsername, creds)
	if err != nil {
		return errors.Wrap(err, "failed to fetch profile")
	}
	return c.JSON(http.StatusOK, profile)
}

func (s *Server) handleProblems(c echo.Context) error {
	groups, err := s.reviews.BrowseTopics(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"topics": groups})
}
