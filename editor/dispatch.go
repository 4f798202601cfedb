package editor

import "github.com/w802474/Labeltool-fakeDataGenerator-sub000/model"

// execute 正向应用命令
func (e *Editor) execute(cmd Command) {
	switch cmd.Kind {
	case KindMove, KindResize:
		e.updateRegion(cmd.Mode, cmd.RegionID, func(r *model.Region) {
			r.SetBox(cmd.NewBox)
			r.IsUserModified = true
			r.IsSizeModified = r.IsSizeModified || r.SizeModified()
		})
	case KindAdd:
		if cmd.Region != nil {
			e.insertRegion(cmd.Mode, cmd.Region.Clone(), cmd.Index)
		}
	case KindDelete:
		e.removeRegion(cmd.Mode, cmd.RegionID)
	case KindEditText:
		e.updateRegion(cmd.Mode, cmd.RegionID, func(r *model.Region) {
			r.SetText(cmd.Mode, cmd.NewText)
			r.IsUserModified = true
		})
	case KindGenerateText:
		e.applyGeneration(cmd.After)
		e.showOverlays = false
	}

	if cmd.Kind.Structural() {
		e.session.Status = e.session.Status.AfterStructuralEdit()
	}
}

// revert 撤销本地命令；generate_text 由 Undo 单独处理
func (e *Editor) revert(cmd Command) {
	switch cmd.Kind {
	case KindMove, KindResize:
		// is_size_modified 不回退：区域在生命周期中已被改过尺寸
		e.updateRegion(cmd.Mode, cmd.RegionID, func(r *model.Region) {
			r.SetBox(cmd.OldBox)
			r.IsUserModified = true
		})
	case KindAdd:
		e.removeRegion(cmd.Mode, cmd.RegionID)
	case KindDelete:
		if cmd.Region != nil {
			e.insertRegion(cmd.Mode, cmd.Region.Clone(), cmd.Index)
		}
	case KindEditText:
		e.updateRegion(cmd.Mode, cmd.RegionID, func(r *model.Region) {
			r.SetText(cmd.Mode, cmd.OldText)
			r.IsUserModified = cmd.OldText != ""
		})
	}

	if cmd.Kind.Structural() {
		e.session.Status = e.session.Status.AfterStructuralEdit()
	}
}

// updateRegion ID 不存在时静默忽略
func (e *Editor) updateRegion(mode model.EditMode, id string, fn func(r *model.Region)) {
	regions := e.session.Regions(mode)
	if idx := model.FindRegion(regions, id); idx >= 0 {
		fn(&regions[idx])
	}
}

// insertRegion 内部插入路径，不产生命令
func (e *Editor) insertRegion(mode model.EditMode, region model.Region, index int) {
	regions := e.session.Regions(mode)
	if index < 0 || index > len(regions) {
		index = len(regions)
	}
	out := make([]model.Region, 0, len(regions)+1)
	out = append(out, regions[:index]...)
	out = append(out, region)
	out = append(out, regions[index:]...)
	e.session.SetRegions(mode, out)
}

// removeRegion 内部删除路径，不产生命令；ID 不存在时为空操作
func (e *Editor) removeRegion(mode model.EditMode, id string) {
	regions := e.session.Regions(mode)
	idx := model.FindRegion(regions, id)
	if idx < 0 {
		return
	}
	out := make([]model.Region, 0, len(regions)-1)
	out = append(out, regions[:idx]...)
	out = append(out, regions[idx+1:]...)
	e.session.SetRegions(mode, out)

	if e.selected == id {
		e.selected = ""
	}
}

// applyGeneration 用快照覆盖 processed 上下文的服务端产物
func (e *Editor) applyGeneration(snap *GenerationSnapshot) {
	if snap == nil {
		return
	}
	e.session.ProcessedImage = snap.ProcessedImage.Clone()
	regions := model.CloneRegions(snap.ProcessedTextRegions)
	if regions == nil {
		regions = []model.Region{}
	}
	e.session.ProcessedTextRegions = regions
	e.session.GenerationStarted = true
	if snap.Status != "" {
		e.session.Status = snap.Status
	}
}
