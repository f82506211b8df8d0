package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wfunc/superrpg-core/internal/errors"
	"github.com/wfunc/superrpg-core/internal/models"
	"github.com/wfunc/superrpg-core/internal/progression"
)

// PlayerView 玩家快照
type PlayerView struct {
	Player      *models.PlayerRecord     `json:"player"`
	Profession  *models.ProfessionRecord `json:"profession"`
	Abilities   *models.AbilityRecord    `json:"abilities"`
	TotalPower  int                      `json:"total_power"`
	RequiredExp int64                    `json:"required_exp"`
}

// SetLevelRequest 设置等级请求
type SetLevelRequest struct {
	Level int `json:"level" binding:"required,min=1"`
}

// ExperienceRequest 增加经验请求
type ExperienceRequest struct {
	Amount int64 `json:"amount" binding:"min=0"`
}

// ExperienceResponse 增加经验响应
type ExperienceResponse struct {
	LevelsGained int         `json:"levels_gained"`
	View         *PlayerView `json:"view"`
}

// playerID 读取并校验路径中的玩家ID
func (r *Router) playerID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		r.fail(c, errors.Newf(errors.ErrInvalidParam, "无效的玩家ID: %s", id))
		return "", false
	}
	return id, true
}

// view 组装玩家快照
func (r *Router) view(c *gin.Context, id string) (*PlayerView, error) {
	ctx := c.Request.Context()

	p, err := r.svc.Progression.Player(ctx, id)
	if err != nil {
		return nil, err
	}
	prof, err := r.svc.Profession.Record(ctx, id)
	if err != nil {
		return nil, err
	}
	abilities, err := r.svc.Ability.Record(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PlayerView{
		Player:      p,
		Profession:  prof,
		Abilities:   abilities,
		TotalPower:  progression.TotalPower(p),
		RequiredExp: r.svc.Progression.Rules().RequiredExp(p.Level),
	}, nil
}

// getPlayer 查询玩家快照
func (r *Router) getPlayer(c *gin.Context) {
	id, ok := r.playerID(c)
	if !ok {
		return
	}
	v, err := r.view(c, id)
	if err != nil {
		r.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// setLevel 管理员设置等级
func (r *Router) setLevel(c *gin.Context) {
	id, ok := r.playerID(c)
	if !ok {
		return
	}
	var req SetLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		r.fail(c, errors.Newf(errors.ErrInvalidParam, "参数错误: %v", err))
		return
	}

	if err := r.svc.Progression.SetLevel(c.Request.Context(), id, req.Level); err != nil {
		r.fail(c, err)
		return
	}
	v, err := r.view(c, id)
	if err != nil {
		r.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// gainExperience 增加经验
func (r *Router) gainExperience(c *gin.Context) {
	id, ok := r.playerID(c)
	if !ok {
		return
	}
	var req ExperienceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		r.fail(c, errors.Newf(errors.ErrInvalidParam, "参数错误: %v", err))
		return
	}

	gained, err := r.svc.Progression.GainExperience(c.Request.Context(), id, req.Amount)
	if err != nil {
		r.fail(c, err)
		return
	}
	v, err := r.view(c, id)
	if err != nil {
		r.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ExperienceResponse{LevelsGained: gained, View: v})
}

// snapshot 立即落盘所有缓存
func (r *Router) snapshot(c *gin.Context) {
	if err := r.svc.FlushAll(c.Request.Context()); err != nil {
		r.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
