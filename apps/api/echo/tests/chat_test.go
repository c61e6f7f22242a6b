package tests

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/educa/apps/api/echo"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/tests"
)

func Test_chatApi(t *testing.T) {
	app := setup(t)
	alice := app.createInstructor(t, "alice")
	bob := app.createStudent(t, "bob")
	eve := app.createStudent(t, "eve")
	prog := testutil.CreateSubject(t, app.crsRepo, "Programming", "programming")
	crs := testutil.CreateCourse(t, app.crsRepo, alice, prog, "Go 101", "go-101")
	_, err := app.crsRepo.EnrollStudent(context.Background(), crs.ID, bob.ID)
	require.NoError(t, err)

	bobToken := app.getToken(t, bob)
	eveToken := app.getToken(t, eve)
	roomPath := fmt.Sprintf("/v1/chat/rooms/%d", crs.ID)

	tests := []httpTest{
		{name: "auth required", path: roomPath, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "not enrolled", path: roomPath, token: eveToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "unknown course", path: "/v1/chat/rooms/999", token: bobToken, wantCode: http.StatusNotFound},
	}
	runHTTPTests(t, app, tests)

	t.Run("room", func(t *testing.T) {
		rec := app.do(http.MethodGet, roomPath, bobToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var room course.ChatRoom
		unmarshal(t, rec, &room)
		assert.Equal(t, crs.ID, room.Course.ID)
		assert.Equal(t, fmt.Sprintf("/ws/chat/rooms/%d", crs.ID), room.URL)
	})

	srv := httptest.NewServer(app.Server)
	defer srv.Close()
	wsURL := func(token string) string {
		return fmt.Sprintf("ws%s/ws/chat/rooms/%d?token=%s", strings.TrimPrefix(srv.URL, "http"), crs.ID, token)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("websocket: not enrolled", func(t *testing.T) {
		_, resp, err := websocket.Dial(ctx, wsURL(eveToken), nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("websocket: token required", func(t *testing.T) {
		_, resp, err := websocket.Dial(ctx, wsURL(""), nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("websocket: echo", func(t *testing.T) {
		conn, _, err := websocket.Dial(ctx, wsURL(bobToken), nil)
		require.NoError(t, err)
		defer conn.CloseNow()

		for _, msg := range []string{"hello", "how do I close a channel?"} {
			require.NoError(t, wsjson.Write(ctx, conn, ChatMessage{Message: msg}))
			var got ChatMessage
			require.NoError(t, wsjson.Read(ctx, conn, &got))
			assert.Equal(t, msg, got.Message)
		}
		assert.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	})
}
