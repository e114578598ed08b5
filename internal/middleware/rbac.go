package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-grading-api/internal/utils"
)

// Roles allowed to read and mutate grading data.
const (
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// GraderRoles lists every role that may grade submissions.
var GraderRoles = []string{RoleTeacher, RoleAdmin}

// RequireGrader admits teachers and admins only.
func RequireGrader() fiber.Handler {
	return RequireRole(GraderRoles...)
}

// RequireRole admits requests whose user_role local matches one of roles,
// compared case-insensitively. A request without a role is always rejected.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := strings.ToLower(strings.TrimSpace(role)); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		role := roleFromLocals(c.Locals("user_role"))
		if role == "" {
			return utils.SendError(c, fiber.StatusForbidden, "grader role required")
		}
		if _, ok := allowed[role]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

// roleFromLocals accepts the shapes JWTProtected stores as well as a plain
// string slice set by tests or upstream middleware.
func roleFromLocals(value interface{}) string {
	if roles, ok := value.([]string); ok {
		for _, role := range roles {
			if normalized := strings.ToLower(strings.TrimSpace(role)); normalized != "" {
				return normalized
			}
		}
		return ""
	}
	return normalizeRole(value)
}
