package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mafia-game/backend/internal/game"
	"github.com/mafia-game/backend/internal/models"
)

// RoomReader looks up lobby information.
type RoomReader interface {
	RoomInfo(ctx context.Context, code string) (models.RoomInfo, error)
}

type CreateRoomRequest struct {
	Settings *models.Settings `json:"settings"`
}

// CreateRoom creates a new game room. The first player to join becomes host.
func CreateRoom(rooms Rooms) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateRoomRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		room, err := rooms.CreateRoom("", req.Settings)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"code": room.Code})
	}
}

// GetRoom retrieves room information
func GetRoom(rooms RoomReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		info, err := rooms.RoomInfo(c.Request.Context(), c.Param("code"))
		if errors.Is(err, game.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"room": info})
	}
}
