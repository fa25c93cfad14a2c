package apiv1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/doherty-labs/health-app-demo/pkg/repository"
	"github.com/doherty-labs/health-app-demo/pkg/types"
)

type SearchGroup struct {
	routeGroup   *echo.Group
	patients     repository.PatientRepository
	practices    repository.PracticeRepository
	appointments repository.AppointmentRepository
}

func NewSearchGroup(g *echo.Group, patients repository.PatientRepository, practices repository.PracticeRepository, appointments repository.AppointmentRepository) *SearchGroup {
	group := &SearchGroup{
		routeGroup:   g,
		patients:     patients,
		practices:    practices,
		appointments: appointments,
	}

	g.GET("/patient/search", group.SearchPatients)
	g.GET("/practice/search", group.SearchPractices)
	g.GET("/appointment/search", group.SearchAppointments)
	g.GET("/appointment/states", group.AppointmentStates)
	return group
}

func searchParams(ctx echo.Context) (string, int, error) {
	term := ctx.QueryParam("q")
	if term == "" {
		return "", 0, echo.NewHTTPError(http.StatusBadRequest, "missing query parameter q")
	}

	size := 0
	if raw := ctx.QueryParam("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return "", 0, echo.NewHTTPError(http.StatusBadRequest, "invalid size parameter")
		}
		size = parsed
	}
	return term, size, nil
}

func (g *SearchGroup) SearchPatients(ctx echo.Context) error {
	term, size, err := searchParams(ctx)
	if err != nil {
		return err
	}

	results, err := g.patients.Search(ctx.Request().Context(), term, size)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return ctx.JSON(http.StatusOK, map[string]any{"results": results})
}

func (g *SearchGroup) SearchPractices(ctx echo.Context) error {
	term, size, err := searchParams(ctx)
	if err != nil {
		return err
	}

	results, err := g.practices.Search(ctx.Request().Context(), term, size)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return ctx.JSON(http.StatusOK, map[string]any{"results": results})
}

func (g *SearchGroup) SearchAppointments(ctx echo.Context) error {
	term, size, err := searchParams(ctx)
	if err != nil {
		return err
	}

	results, err := g.appointments.Search(ctx.Request().Context(), term, size)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return ctx.JSON(http.StatusOK, map[string]any{"results": results})
}

func (g *SearchGroup) AppointmentStates(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{"states": types.AppointmentStates})
}
