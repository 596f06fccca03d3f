package sales_import

import (
	"fmt"

	"github.com/google/uuid"

	jobrt "github.com/yungbote/smartinventory-backend/internal/jobs/runtime"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	uploadID, ok := jc.PayloadUUID("upload_id")
	if !ok && jc.Job.EntityID != nil {
		uploadID, ok = *jc.Job.EntityID, *jc.Job.EntityID != uuid.Nil
	}
	if !ok {
		jc.Fail("validate", fmt.Errorf("missing upload_id"))
		return nil
	}

	jc.Progress("import", 1, "Reading upload")
	sum, err := p.importer.Process(jc.Ctx, uploadID, func(done, total int) {
		if total <= 0 {
			return
		}
		jc.Progress("import", 1+done*98/total, fmt.Sprintf("%d/%d rows", done, total))
	})
	if err != nil {
		jc.Fail("import", err)
		return nil
	}
	jc.Succeed("done", sum)
	return nil
}
