package echoapi

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/course"
)

type chatApi struct {
	svc    course.Service
	logger core.Logger
}

// registerChatAPI registers the chat room endpoint under g and its websocket under ws.
// Browsers cannot set headers on websockets so wsJWT reads the token from the query string.
func registerChatAPI(g, ws *echo.Group, jwt, wsJWT echo.MiddlewareFunc, svc course.Service, logger core.Logger) {
	api := chatApi{svc: svc, logger: logger}

	g.GET("/chat/rooms/:course_id", api.room, jwt)
	ws.GET("/chat/rooms/:course_id", api.connect, wsJWT)
}

type ChatMessage struct {
	Message string `json:"message"`
}

func (api *chatApi) getRoom(ctx echo.Context) (course.ChatRoom, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return course.ChatRoom{}, err
	}
	id, err := paramID(ctx, "course_id")
	if err != nil {
		return course.ChatRoom{}, err
	}
	room, err := api.svc.GetChatRoom(ctx.Request().Context(), claims.Subject, id)
	if err != nil {
		return course.ChatRoom{}, errors.Wrap(err, "getting chat room")
	}
	return room, nil
}

func (api *chatApi) room(ctx echo.Context) error {
	room, err := api.getRoom(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, room)
}

// connect echoes every `{"message": ...}` received back to the same connection.
func (api *chatApi) connect(ctx echo.Context) error {
	if _, err := api.getRoom(ctx); err != nil {
		return err
	}

	conn, err := websocket.Accept(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return errors.Wrap(err, "accepting websocket")
	}
	defer conn.CloseNow()

	// the connection is hijacked: errors cannot be sent as HTTP responses anymore
	reqCtx := ctx.Request().Context()
	for {
		var msg ChatMessage
		if err = wsjson.Read(reqCtx, conn, &msg); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				api.logger.Warn("reading chat message", err)
			}
			return nil
		}
		if err = wsjson.Write(reqCtx, conn, ChatMessage{Message: msg.Message}); err != nil {
			api.logger.Warn("writing chat message", err)
			return nil
		}
	}
}
