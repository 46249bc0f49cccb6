package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/school"
)

func TestRollbarLogger(t *testing.T) {
	var buf bytes.Buffer
	lgr := NewRollbarLogger(log.New(&buf, "", 0), &core.Config{Env: "TEST", Build: "test"})
	lgr.Enable(false)

	usr := school.User{ID: "u1", Email: "jane@x.com", Name: "Jane", Role: school.RoleStudent}
	lgr.Error("loading courses", errors.New("boom"), usr, map[string]interface{}{"path": "/courses"})

	out := buf.String()
	assert.Contains(t, out, "loading courses\n")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "user=u1 role=student")
	assert.Contains(t, out, "path:/courses")
	assert.NotContains(t, out, "jane@x.com")
}

func TestRollbarLogger_prepare(t *testing.T) {
	lgr := RollbarLogger{std: log.New(&bytes.Buffer{}, "", 0)}
	a := school.User{ID: "a"}
	b := school.User{ID: "b"}
	err := errors.New("boom")

	args := lgr.prepare("msg", []interface{}{a, err, b})
	assert.Equal(t, []interface{}{"msg", err}, args)
}
