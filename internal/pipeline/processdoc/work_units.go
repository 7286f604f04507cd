package processdoc

import (
	"github.com/google/uuid"

	"github.com/jackzampolin/docpond/internal/jobs"
)

// Work unit constructors. Each registers the unit's stage under j.units so
// OnComplete can route the result. Callers hold j.mu.

func (j *Job) splitUnit(pageNum int) jobs.WorkUnit {
	id := uuid.New().String()
	j.units[id] = unitInfo{stage: stageSplit, pageNum: pageNum}
	return jobs.WorkUnit{
		ID:    id,
		JobID: j.id,
		Type:  jobs.WorkUnitTypeCPU,
		CPURequest: &jobs.CPUWorkRequest{
			Task:       TaskSplitPage,
			DocumentID: j.cfg.DocumentID,
			PageNum:    pageNum,
		},
	}
}

func (j *Job) renderUnit(pageNum int, pageID string) jobs.WorkUnit {
	id := uuid.New().String()
	j.units[id] = unitInfo{stage: stageRender, pageNum: pageNum}
	return jobs.WorkUnit{
		ID:    id,
		JobID: j.id,
		Type:  jobs.WorkUnitTypeCPU,
		CPURequest: &jobs.CPUWorkRequest{
			Task:       TaskRenderPage,
			DocumentID: j.cfg.DocumentID,
			PageID:     pageID,
			PageNum:    pageNum,
			Payload:    map[string]any{keyZoom: j.cfg.zoom()},
		},
	}
}

func (j *Job) ocrUnit(pageNum int, image []byte) jobs.WorkUnit {
	id := uuid.New().String()
	j.units[id] = unitInfo{stage: stageOCR, pageNum: pageNum}
	return jobs.WorkUnit{
		ID:       id,
		JobID:    j.id,
		Type:     jobs.WorkUnitTypeOCR,
		Provider: j.cfg.Backend,
		OCRRequest: &jobs.OCRWorkRequest{
			Image:   image,
			PageNum: pageNum,
		},
	}
}

func (j *Job) finalizeUnit(pageNum int, pageID, rawText string, image []byte, ocrMeta map[string]any) jobs.WorkUnit {
	id := uuid.New().String()
	j.units[id] = unitInfo{stage: stageFinalize, pageNum: pageNum}
	return jobs.WorkUnit{
		ID:    id,
		JobID: j.id,
		Type:  jobs.WorkUnitTypeCPU,
		CPURequest: &jobs.CPUWorkRequest{
			Task:       TaskFinalizePage,
			DocumentID: j.cfg.DocumentID,
			PageID:     pageID,
			PageNum:    pageNum,
			Payload: map[string]any{
				keyText:  rawText,
				keyImage: image,
				"ocr":    ocrMeta,
			},
		},
	}
}

func (j *Job) thumbnailUnit() jobs.WorkUnit {
	id := uuid.New().String()
	j.units[id] = unitInfo{stage: stageThumbnail}
	j.docPending++
	return jobs.WorkUnit{
		ID:    id,
		JobID: j.id,
		Type:  jobs.WorkUnitTypeCPU,
		CPURequest: &jobs.CPUWorkRequest{
			Task:       TaskThumbnail,
			DocumentID: j.cfg.DocumentID,
			Payload:    map[string]any{keyZoom: j.cfg.zoom()},
		},
	}
}

func (j *Job) layoutUnit() jobs.WorkUnit {
	id := uuid.New().String()
	j.units[id] = unitInfo{stage: stageLayout}
	j.docPending++
	return jobs.WorkUnit{
		ID:    id,
		JobID: j.id,
		Type:  jobs.WorkUnitTypeCPU,
		CPURequest: &jobs.CPUWorkRequest{
			Task:       TaskLayout,
			DocumentID: j.cfg.DocumentID,
			Payload: map[string]any{
				keyBackend: j.cfg.LayoutBackend,
				keyDoOCR:   j.cfg.LayoutDoOCR,
			},
		},
	}
}
