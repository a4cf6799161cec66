package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-desk/internal/auth"
	apperrors "github.com/spec-kit/repair-desk/pkg/util/errorutil"
	"github.com/spec-kit/repair-desk/pkg/util/validation"
)

// bind parses the JSON body into req and validates it.
func bind(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return validation.Struct(req)
}

func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid "+name, map[string]any{"fields": map[string]any{name: "must be a positive integer"}})
	}
	return id, nil
}

func actorID(c *fiber.Ctx) *int64 {
	principal, _ := auth.PrincipalFromContext(c)
	return principal.UserID()
}

func actorName(c *fiber.Ctx) string {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return ""
	}
	return principal.User.Username
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

// page reads limit/offset, or page/page_size when limit is absent.
func page(c *fiber.Ctx) (limit, offset int) {
	if c.Query("limit") != "" || c.Query("offset") != "" {
		return parseInt(c.Query("limit"), 50), parseInt(c.Query("offset"), 0)
	}
	p := parseInt(c.Query("page"), 1)
	if p < 1 {
		p = 1
	}
	size := parseInt(c.Query("page_size"), 50)
	return size, (p - 1) * size
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
