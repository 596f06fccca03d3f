package model_train

import (
	"fmt"

	jobrt "github.com/yungbote/smartinventory-backend/internal/jobs/runtime"
	"github.com/yungbote/smartinventory-backend/internal/services"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	var req services.TrainRequest
	if err := jc.DecodePayload(&req); err != nil {
		jc.Fail("validate", fmt.Errorf("decode payload: %w", err))
		return nil
	}
	if trigger := jc.PayloadString("trigger"); trigger != "" {
		p.log.Info("Retraining", "trigger", trigger)
	}

	jc.Progress("train", 10, "Training model")
	res, err := p.trainer.Train(jc.Ctx, req)
	if err != nil {
		jc.Fail("train", err)
		return nil
	}
	jc.Succeed("done", map[string]any{
		"model_id":      res.Model.ID,
		"model_name":    res.Model.Name,
		"model_version": res.Model.Version,
		"is_active":     res.Model.IsActive,
		"metrics":       res.Metrics,
		"rows":          res.Rows,
		"dropped_rows":  res.Dropped,
	})
	return nil
}
