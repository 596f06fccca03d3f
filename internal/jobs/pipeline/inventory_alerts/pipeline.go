package inventory_alerts

import (
	"github.com/google/uuid"

	jobrt "github.com/yungbote/smartinventory-backend/internal/jobs/runtime"
)

// Run scans the payload's model_id, or the active model when absent.
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	var modelID *uuid.UUID
	if id, ok := jc.PayloadUUID("model_id"); ok {
		modelID = &id
	}
	jc.Progress("scan", 10, "Scanning predictions")
	sum, err := p.engine.Generate(jc.Ctx, modelID)
	if err != nil {
		jc.Fail("scan", err)
		return nil
	}
	jc.Succeed("done", sum)
	return nil
}
