// Package collab runs the realtime collaboration relay. Clients join a room
// per shared drawing and scene updates are broadcast to everyone else in the
// room; the server never inspects payloads.
package collab

import (
	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

const maxHTTPBufferSize = 5000000

// roomFrom extracts the room name from an incoming frame. Clients can send
// anything, so a missing or non-string first element is reported instead of
// letting the assertion panic the handler.
func roomFrom(datas []any) (socketio.Room, bool) {
	if len(datas) == 0 {
		return "", false
	}
	name, ok := datas[0].(string)
	if !ok || name == "" {
		return "", false
	}
	return socketio.Room(name), true
}

// NewServer builds the socket.io server handling drawing rooms.
func NewServer() *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(maxHTTPBufferSize)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})
	server := socketio.NewServer(nil, opts)

	server.On("connection", func(clients ...any) {
		socket := clients[0].(*socketio.Socket)
		me := socket.Id()
		myRoom := socketio.Room(me)
		server.To(myRoom).Emit("init-room")

		socket.On("join-room", func(datas ...any) {
			room, ok := roomFrom(datas)
			if !ok {
				logrus.WithField("socket", me).Warn("Ignoring join-room frame without a room name")
				return
			}
			logrus.WithFields(logrus.Fields{
				"socket": me,
				"room":   room,
			}).Debug("Socket joined room")
			socket.Join(room)
			server.In(room).FetchSockets()(func(usersInRoom []*socketio.RemoteSocket, _ error) {
				if len(usersInRoom) <= 1 {
					server.To(myRoom).Emit("first-in-room")
				} else {
					socket.Broadcast().To(room).Emit("new-user", me)
				}

				roomUsers := make([]socketio.SocketId, 0, len(usersInRoom))
				for _, user := range usersInRoom {
					roomUsers = append(roomUsers, user.Id())
				}
				server.In(room).Emit("room-user-change", roomUsers)
			})
		})

		socket.On("server-broadcast", func(datas ...any) {
			room, ok := roomFrom(datas)
			if !ok || len(datas) < 3 {
				logrus.WithField("socket", me).Warn("Ignoring malformed server-broadcast frame")
				return
			}
			socket.Broadcast().To(room).Emit("client-broadcast", datas[1], datas[2])
		})

		socket.On("server-volatile-broadcast", func(datas ...any) {
			room, ok := roomFrom(datas)
			if !ok || len(datas) < 3 {
				logrus.WithField("socket", me).Warn("Ignoring malformed server-volatile-broadcast frame")
				return
			}
			socket.Volatile().Broadcast().To(room).Emit("client-broadcast", datas[1], datas[2])
		})

		socket.On("disconnecting", func(datas ...any) {
			for _, currentRoom := range socket.Rooms().Keys() {
				server.In(currentRoom).FetchSockets()(func(usersInRoom []*socketio.RemoteSocket, _ error) {
					otherClients := make([]socketio.SocketId, 0, len(usersInRoom))
					for _, userInRoom := range usersInRoom {
						if userInRoom.Id() != me {
							otherClients = append(otherClients, userInRoom.Id())
						}
					}
					if len(otherClients) > 0 {
						server.In(currentRoom).Emit("room-user-change", otherClients)
					}
				})
			}
		})

		socket.On("disconnect", func(datas ...any) {
			socket.RemoveAllListeners("")
			socket.Disconnect(true)
		})
	})

	return server
}
