package editor

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/model"
)

// fakeRemote 记录调用并返回预设结果
type fakeRemote struct {
	mu sync.Mutex

	restoreErr   error
	restoreGate  chan struct{}
	restoreCalls []GenerationSnapshot

	generated    *model.Session
	generateErr  error
	generateGate chan struct{}
	removed     *model.Session
	updates     int
	lastExport  bool
	lastMode    model.EditMode
}

func (f *fakeRemote) RestoreSessionState(ctx context.Context, sessionID string, img *model.ImageRef, regions []model.Region, status model.Status) (*model.Session, error) {
	if f.restoreGate != nil {
		<-f.restoreGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restoreCalls = append(f.restoreCalls, GenerationSnapshot{ProcessedImage: img.Clone(), ProcessedTextRegions: model.CloneRegions(regions), Status: status})
	if f.restoreErr != nil {
		return nil, f.restoreErr
	}
	return &model.Session{
		ID:                   sessionID,
		ProcessedImage:       img.Clone(),
		ProcessedTextRegions: model.CloneRegions(regions),
		Status:               status,
	}, nil
}

func (f *fakeRemote) UpdateRegions(ctx context.Context, sessionID string, regions []model.Region, mode model.EditMode, export bool) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	f.lastExport = export
	f.lastMode = mode
	s := &model.Session{ID: sessionID, Status: model.StatusEditing}
	if export {
		now := time.Now()
		s.ExportedAt = &now
	}
	return s, nil
}

func (f *fakeRemote) RemoveText(ctx context.Context, sessionID string, mode model.EditMode) (*model.Session, error) {
	return f.removed, nil
}

func (f *fakeRemote) GenerateText(ctx context.Context, sessionID string, regions []model.Region) (*model.Session, error) {
	if f.generateGate != nil {
		<-f.generateGate
	}
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return f.generated, nil
}

func newSession(regions ...model.Region) *model.Session {
	if regions == nil {
		regions = []model.Region{}
	}
	return &model.Session{
		ID:          "s1",
		Image:       &model.ImageRef{ID: "img", Width: 1000, Height: 500},
		TextRegions: regions,
		Status:      model.StatusDetected,
	}
}

func detected(id string, box model.Rect, text string) model.Region {
	r := model.NewRegion(id, box)
	r.OriginalText = text
	r.EditedText = text
	r.Confidence = 0.9
	return r
}

func newEditor(t *testing.T, s *model.Session, remote Remote) *Editor {
	t.Helper()
	e, err := New(&Config{Session: s, MaxHistorySize: 50, Remote: remote})
	require.NoError(t, err)
	return e
}

func TestNewRequiresSession(t *testing.T) {
	_, err := New(&Config{})
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = New(nil)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestAddThenUndo(t *testing.T) {
	e := newEditor(t, newSession(), nil)

	r, err := e.AddRegion(nil)
	require.NoError(t, err)
	assert.Equal(t, "region_1", r.ID)
	assert.Equal(t, 1, e.History(model.ModeOCR).Len())
	assert.Len(t, e.Regions(), 1)
	assert.Equal(t, r.ID, e.Selected())

	_, err = e.Undo(context.Background())
	require.NoError(t, err)
	assert.Empty(t, e.Regions())
	assert.Equal(t, -1, e.History(model.ModeOCR).Index())
	assert.False(t, e.CanUndo())
	assert.Empty(t, e.Selected())
}

func TestAddRegionDefaultGeometry(t *testing.T) {
	e := newEditor(t, newSession(), nil)

	r, err := e.AddRegion(&model.Region{OriginalText: "ignored id", ID: "custom"})
	require.NoError(t, err)

	want := model.Rect{X: 450, Y: 225, Width: 100, Height: 50}
	assert.Equal(t, want, r.BoundingBox)
	assert.Equal(t, want, r.OriginalBoxSize)
	assert.Equal(t, want.Corners(), r.Corners)
	assert.Equal(t, "region_1", r.ID)
	assert.True(t, r.IsUserModified)
}

func TestAddRegionWithoutImage(t *testing.T) {
	s := newSession()
	s.Image = nil
	e := newEditor(t, s, nil)

	r, err := e.AddRegion(nil)
	require.NoError(t, err)
	assert.Equal(t, fallbackRegionBox, r.BoundingBox)
}

func TestRegionIDsNeverReused(t *testing.T) {
	e := newEditor(t, newSession(detected("region_4", model.Rect{Width: 10, Height: 10}, "a")), nil)

	r1, err := e.AddRegion(nil)
	require.NoError(t, err)
	assert.Equal(t, "region_5", r1.ID)

	require.NoError(t, e.RemoveRegion(r1.ID))
	r2, err := e.AddRegion(nil)
	require.NoError(t, err)
	assert.Equal(t, "region_6", r2.ID)

	_, err = e.Undo(context.Background())
	require.NoError(t, err)
	r3, err := e.AddRegion(nil)
	require.NoError(t, err)
	assert.Equal(t, "region_7", r3.ID)
}

func TestEditTextUndo(t *testing.T) {
	e := newEditor(t, newSession(detected("r1", model.Rect{Width: 10, Height: 10}, "A")), nil)

	changed, err := e.EditText("r1", "B")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, e.History(model.ModeOCR).Len())

	r, _ := e.Region("r1")
	assert.Equal(t, "B", r.EditedText)
	assert.True(t, r.IsUserModified)

	_, err = e.Undo(context.Background())
	require.NoError(t, err)
	r, _ = e.Region("r1")
	assert.Equal(t, "A", r.EditedText)
	assert.True(t, r.IsUserModified)
	assert.Equal(t, "A", r.OriginalText)
}

func TestEditTextUndoToEmptyClearsUserModified(t *testing.T) {
	e := newEditor(t, newSession(model.NewRegion("r1", model.Rect{Width: 10, Height: 10})), nil)

	_, err := e.EditText("r1", "hello")
	require.NoError(t, err)
	_, err = e.Undo(context.Background())
	require.NoError(t, err)

	r, _ := e.Region("r1")
	assert.Empty(t, r.EditedText)
	assert.False(t, r.IsUserModified)
}

func TestEditTextNoOp(t *testing.T) {
	e := newEditor(t, newSession(detected("r1", model.Rect{Width: 10, Height: 10}, "A")), nil)

	changed, err := e.EditText("r1", "A")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 0, e.History(model.ModeOCR).Len())
}

func TestEditTextUsesContextField(t *testing.T) {
	e := newEditor(t, newSession(detected("r1", model.Rect{Width: 10, Height: 10}, "A")), nil)
	require.NoError(t, e.SetMode(model.ModeProcessed))

	_, err := e.EditText("r1", "Z")
	require.NoError(t, err)

	s := e.Session()
	assert.Equal(t, "Z", s.ProcessedTextRegions[0].UserInputText)
	assert.Equal(t, "A", s.ProcessedTextRegions[0].EditedText)
	assert.Empty(t, s.TextRegions[0].UserInputText)

	cmd, ok := e.History(model.ModeProcessed).Current()
	require.True(t, ok)
	assert.Equal(t, "user_input_text", cmd.Field)
}

func TestMoveNoOpLeavesHistory(t *testing.T) {
	box := model.Rect{X: 1, Y: 2, Width: 10, Height: 10}
	e := newEditor(t, newSession(detected("r1", box, "A")), nil)

	recorded, err := e.MoveRegion("r1", box, box)
	require.NoError(t, err)
	assert.False(t, recorded)
	assert.Equal(t, 0, e.History(model.ModeOCR).Len())
	assert.Equal(t, -1, e.History(model.ModeOCR).Index())
}

func TestMoveAndResizeUndo(t *testing.T) {
	box := model.Rect{X: 10, Y: 10, Width: 40, Height: 20}
	e := newEditor(t, newSession(detected("r1", box, "A")), nil)

	moved := model.Rect{X: 30, Y: 10, Width: 40, Height: 20}
	_, err := e.MoveRegion("r1", box, moved)
	require.NoError(t, err)
	resized := model.Rect{X: 30, Y: 10, Width: 80, Height: 40}
	_, err = e.ResizeRegion("r1", moved, resized)
	require.NoError(t, err)

	r, _ := e.Region("r1")
	assert.Equal(t, resized, r.BoundingBox)
	assert.True(t, r.IsSizeModified)
	assert.True(t, r.IsUserModified)
	assert.Equal(t, 2.0, r.RelativeScale())

	_, err = e.Undo(context.Background())
	require.NoError(t, err)
	r, _ = e.Region("r1")
	assert.Equal(t, moved, r.BoundingBox)

	_, err = e.Undo(context.Background())
	require.NoError(t, err)
	r, _ = e.Region("r1")
	assert.Equal(t, box, r.BoundingBox)
	assert.Equal(t, box.Corners(), r.Corners)
	assert.True(t, r.IsSizeModified, "size modification is not cleared by undo")
	assert.True(t, r.IsUserModified)
}

func TestJitterWithinToleranceIsNotSizeModified(t *testing.T) {
	box := model.Rect{X: 10, Y: 10, Width: 40, Height: 20}
	e := newEditor(t, newSession(detected("r1", box, "A")), nil)

	_, err := e.MoveRegion("r1", box, model.Rect{X: 10.5, Y: 10, Width: 40, Height: 20})
	require.NoError(t, err)

	r, _ := e.Region("r1")
	assert.False(t, r.IsSizeModified)
	assert.True(t, r.IsUserModified)
}

func TestUnknownRegion(t *testing.T) {
	e := newEditor(t, newSession(), nil)

	_, err := e.MoveRegion("nope", model.Rect{}, model.Rect{X: 1})
	assert.ErrorIs(t, err, ErrRegionNotFound)
	_, err = e.EditText("nope", "x")
	assert.ErrorIs(t, err, ErrRegionNotFound)
	assert.ErrorIs(t, e.RemoveRegion("nope"), ErrRegionNotFound)
	assert.ErrorIs(t, e.Select("nope"), ErrRegionNotFound)
	assert.ErrorIs(t, e.SetCategory("nope", "title", nil), ErrRegionNotFound)
}

func TestDeleteUndoRestoresPosition(t *testing.T) {
	regions := []model.Region{
		detected("region_1", model.Rect{Width: 1, Height: 1}, "a"),
		detected("region_2", model.Rect{Width: 2, Height: 2}, "b"),
		detected("region_3", model.Rect{Width: 3, Height: 3}, "c"),
	}
	e := newEditor(t, newSession(model.CloneRegions(regions)...), nil)

	require.NoError(t, e.Select("region_2"))
	require.NoError(t, e.RemoveRegion("region_2"))
	assert.Len(t, e.Regions(), 2)

	_, err := e.Undo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, regions, e.Regions())
}

func TestUndoAddOfMissingRegionIsNoOp(t *testing.T) {
	e := newEditor(t, newSession(detected("region_1", model.Rect{Width: 1, Height: 1}, "a")), nil)

	cmd := e.factory.Add(model.ModeOCR, model.NewRegion("region_9", model.Rect{}), 0)
	e.mu.Lock()
	e.revert(cmd)
	e.mu.Unlock()

	assert.Len(t, e.Regions(), 1)
}

func TestStatusTransitions(t *testing.T) {
	e := newEditor(t, newSession(detected("r1", model.Rect{Width: 10, Height: 10}, "A")), nil)

	_, err := e.EditText("r1", "B")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDetected, e.Session().Status, "text edits keep status")

	_, err = e.AddRegion(nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusEditing, e.Session().Status)
}

func TestStructuralEditLeavesRemovedState(t *testing.T) {
	s := newSession(detected("r1", model.Rect{Width: 10, Height: 10}, "A"))
	s.Status = model.StatusRemoved
	e := newEditor(t, s, nil)

	require.NoError(t, e.RemoveRegion("r1"))
	assert.Equal(t, model.StatusEditing, e.Session().Status)
}

func TestContextIsolation(t *testing.T) {
	e := newEditor(t, newSession(detected("r1", model.Rect{Width: 10, Height: 10}, "A")), nil)

	_, err := e.EditText("r1", "B")
	require.NoError(t, err)
	ocrLen, ocrIdx := e.History(model.ModeOCR).Len(), e.History(model.ModeOCR).Index()

	require.NoError(t, e.SetMode(model.ModeProcessed))
	assert.False(t, e.CanUndo(), "processed history starts empty")

	_, err = e.AddRegion(nil)
	require.NoError(t, err)
	_, err = e.EditText("r1", "C")
	require.NoError(t, err)

	assert.Equal(t, ocrLen, e.History(model.ModeOCR).Len())
	assert.Equal(t, ocrIdx, e.History(model.ModeOCR).Index())
	assert.Equal(t, 2, e.History(model.ModeProcessed).Len())

	s := e.Session()
	assert.Len(t, s.TextRegions, 1)
	assert.Len(t, s.ProcessedTextRegions, 2)
	assert.Equal(t, "B", s.ProcessedTextRegions[0].EditedText, "processed slot was cloned on first entry")

	require.NoError(t, e.SetMode(model.ModeOCR))
	assert.True(t, e.CanUndo())
	_, err = e.Undo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, e.History(model.ModeProcessed).Len())
	assert.Equal(t, 1, e.History(model.ModeProcessed).Index())
	assert.Equal(t, "A", e.Session().TextRegions[0].EditedText)
	assert.Len(t, e.Session().ProcessedTextRegions, 2)
}

func TestUndoSequenceRestoresCollection(t *testing.T) {
	base := func() []model.Region {
		var out []model.Region
		for i, text := range []string{"alpha", "beta", "gamma"} {
			r := detected(model.FormatRegionID(i+1), model.Rect{X: float64(i * 50), Y: 10, Width: 40, Height: 20}, text)
			r.IsUserModified = true
			r.IsSizeModified = true
			out = append(out, r)
		}
		return out
	}

	for seed := int64(1); seed <= 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		e := newEditor(t, newSession(base()...), nil)
		want := e.Regions()

		n := 0
		for i := 0; i < 15; i++ {
			regions := e.Regions()
			switch op := rng.Intn(5); {
			case op == 0 || len(regions) == 0:
				_, err := e.AddRegion(nil)
				require.NoError(t, err)
				n++
			case op == 1:
				require.NoError(t, e.RemoveRegion(regions[rng.Intn(len(regions))].ID))
				n++
			case op == 2 || op == 3:
				r := regions[rng.Intn(len(regions))]
				nb := r.BoundingBox
				nb.X += float64(rng.Intn(20) + 2)
				var err error
				if op == 2 {
					_, err = e.MoveRegion(r.ID, r.BoundingBox, nb)
				} else {
					nb.Width += 3
					_, err = e.ResizeRegion(r.ID, r.BoundingBox, nb)
				}
				require.NoError(t, err)
				n++
			default:
				r := regions[rng.Intn(len(regions))]
				changed, err := e.EditText(r.ID, r.EditedText+"!")
				require.NoError(t, err)
				require.True(t, changed)
				n++
			}
		}

		for i := 0; i < n; i++ {
			_, err := e.Undo(context.Background())
			require.NoError(t, err)
		}
		assert.Equal(t, want, e.Regions(), "seed %d", seed)
		assert.False(t, e.CanUndo())
	}
}

func TestUndoEmpty(t *testing.T) {
	e := newEditor(t, newSession(), nil)
	_, err := e.Undo(context.Background())
	assert.ErrorIs(t, err, ErrNothingToUndo)
}

func TestHistoryEvictionThroughEditor(t *testing.T) {
	e, err := New(&Config{Session: newSession(), MaxHistorySize: 3})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := e.AddRegion(nil)
		require.NoError(t, err)
	}
	l := e.History(model.ModeOCR)
	assert.Equal(t, 3, l.Len())
	assert.Equal(t, 2, l.Index())

	cur, ok := l.Current()
	require.True(t, ok)
	assert.Equal(t, "region_5", cur.RegionID)

	for i := 0; i < 3; i++ {
		_, err := e.Undo(context.Background())
		require.NoError(t, err)
	}
	assert.False(t, e.CanUndo())
	assert.Len(t, e.Regions(), 2, "evicted adds can no longer be undone")
}

func TestSetCategory(t *testing.T) {
	e := newEditor(t, newSession(model.NewRegion("r1", model.Rect{Width: 10, Height: 10})), nil)

	require.NoError(t, e.SetCategory("r1", "title", &model.CategoryConfig{Color: "#112233"}))
	r, _ := e.Region("r1")
	assert.Equal(t, "title", r.TextCategory)
	assert.Equal(t, "#112233", r.CategoryConfig.Color)
	assert.True(t, r.IsUserModified)
	assert.Equal(t, 0, e.History(model.ModeOCR).Len())
}

func generationEditor(t *testing.T, remote Remote) *Editor {
	t.Helper()
	s := newSession(detected("region_1", model.Rect{Width: 40, Height: 20}, "hello"))
	s.Status = model.StatusRemoved
	s.ProcessedImage = &model.ImageRef{ID: "removed", URL: "/files/removed.png", Width: 1000, Height: 500}
	s.EnsureGeneration()

	e := newEditor(t, s, remote)
	require.NoError(t, e.SetMode(model.ModeProcessed))
	return e
}

func TestGenerateTextUndoRestoresSnapshot(t *testing.T) {
	remote := &fakeRemote{}
	e := generationEditor(t, remote)

	_, err := e.EditText("region_1", "bonjour")
	require.NoError(t, err)

	s0 := e.Session()
	generated := s0.Clone()
	generated.ProcessedImage = &model.ImageRef{ID: "generated", URL: "/files/generated.png"}
	generated.Status = model.StatusGenerated
	remote.generated = generated

	_, err = e.GenerateText(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, s0.ProcessedImage, e.Session().ProcessedImage)
	assert.Equal(t, model.StatusGenerated, e.Session().Status)
	assert.False(t, e.ShowOverlays())
	assert.Equal(t, 2, e.History(model.ModeProcessed).Len())

	res, err := e.Undo(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Equal(t, KindGenerateText, res.Command.Kind)

	require.Len(t, remote.restoreCalls, 1)
	assert.Equal(t, s0.ProcessedImage, remote.restoreCalls[0].ProcessedImage)
	assert.Equal(t, s0.ProcessedTextRegions, remote.restoreCalls[0].ProcessedTextRegions)
	assert.Equal(t, model.StatusRemoved, remote.restoreCalls[0].Status)

	after := e.Session()
	assert.Equal(t, s0.ProcessedImage, after.ProcessedImage)
	assert.Equal(t, s0.ProcessedTextRegions, after.ProcessedTextRegions)
	assert.Equal(t, model.StatusRemoved, after.Status, "the synced and fallback paths end in the same status")
	assert.Equal(t, model.ModeProcessed, e.Mode())
	assert.True(t, e.ShowOverlays())
	assert.Equal(t, 0, e.History(model.ModeProcessed).Index())
}

func TestGenerateTextUndoFallsBackOnSyncFailure(t *testing.T) {
	remote := &fakeRemote{restoreErr: errors.New("connection refused")}
	e := generationEditor(t, remote)

	s0 := e.Session()
	generated := s0.Clone()
	generated.ProcessedImage = &model.ImageRef{ID: "generated"}
	generated.Status = model.StatusGenerated
	remote.generated = generated

	_, err := e.GenerateText(context.Background())
	require.NoError(t, err)

	res, err := e.Undo(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.EqualError(t, res.SyncErr, "connection refused")

	after := e.Session()
	assert.Equal(t, s0.ProcessedImage, after.ProcessedImage)
	assert.Equal(t, s0.ProcessedTextRegions, after.ProcessedTextRegions)
	assert.Equal(t, model.StatusRemoved, after.Status)
	assert.False(t, e.CanUndo())
}

func TestGenerateTextUndoWithoutSynchronizer(t *testing.T) {
	e := generationEditor(t, nil)
	before := &GenerationSnapshot{ProcessedImage: &model.ImageRef{ID: "removed"}, Status: model.StatusRemoved}
	after := &GenerationSnapshot{ProcessedImage: &model.ImageRef{ID: "generated"}, Status: model.StatusGenerated}

	e.mu.Lock()
	e.record(e.factory.GenerateText(before, after))
	e.mu.Unlock()

	res, err := e.Undo(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.ErrorIs(t, res.SyncErr, ErrNoSynchronizer)
	assert.Equal(t, "removed", e.Session().ProcessedImage.ID)
}

func TestGenerateTextRequiresProcessedMode(t *testing.T) {
	e := newEditor(t, newSession(), &fakeRemote{})
	_, err := e.GenerateText(context.Background())
	assert.ErrorIs(t, err, ErrNotInGeneration)

	// 检查失败不占用远程调用标记
	_, err = e.AddRegion(nil)
	assert.NoError(t, err)
}

func TestModeLockedWhileGenerating(t *testing.T) {
	remote := &fakeRemote{generateGate: make(chan struct{})}
	e := generationEditor(t, remote)

	generated := e.Session()
	generated.ProcessedImage = &model.ImageRef{ID: "generated"}
	remote.generated = generated

	done := make(chan error, 1)
	go func() {
		_, err := e.GenerateText(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.inflight == opRemote
	}, time.Second, time.Millisecond)

	assert.ErrorIs(t, e.SetMode(model.ModeOCR), ErrRemoteInProgress)

	close(remote.generateGate)
	require.NoError(t, <-done)
	assert.Equal(t, model.ModeProcessed, e.Mode())
	assert.Equal(t, 1, e.History(model.ModeProcessed).Len())
	assert.Equal(t, 0, e.History(model.ModeOCR).Len())
}

func TestGenerateTextFailureRecordsNothing(t *testing.T) {
	remote := &fakeRemote{generateErr: errors.New("renderer down")}
	e := generationEditor(t, remote)

	_, err := e.GenerateText(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, e.History(model.ModeProcessed).Len())
}

func TestSecondUndoRejectedWhileRestoring(t *testing.T) {
	remote := &fakeRemote{restoreGate: make(chan struct{})}
	e := generationEditor(t, remote)

	generated := e.Session()
	generated.ProcessedImage = &model.ImageRef{ID: "generated"}
	remote.generated = generated
	_, err := e.GenerateText(context.Background())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := e.Undo(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.inflight == opUndo
	}, time.Second, time.Millisecond)

	_, err = e.Undo(context.Background())
	assert.ErrorIs(t, err, ErrUndoInProgress)
	_, err = e.AddRegion(nil)
	assert.ErrorIs(t, err, ErrUndoInProgress)

	close(remote.restoreGate)
	require.NoError(t, <-done)
	assert.Equal(t, -1, e.History(model.ModeProcessed).Index())
}

func TestRemoveTextEntersGeneration(t *testing.T) {
	remote := &fakeRemote{}
	s := newSession(detected("region_1", model.Rect{Width: 40, Height: 20}, "hello"))
	e := newEditor(t, s, remote)

	remote.removed = &model.Session{
		ID:             "s1",
		ProcessedImage: &model.ImageRef{ID: "removed"},
		Status:         model.StatusRemoved,
	}

	out, err := e.RemoveText(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, remote.updates)
	assert.Equal(t, model.ModeOCR, remote.lastMode)
	assert.Equal(t, model.ModeProcessed, e.Mode())
	assert.Equal(t, "removed", out.ProcessedImage.ID)
	assert.Equal(t, model.StatusRemoved, out.Status)
	assert.True(t, out.GenerationStarted)
	assert.Len(t, out.ProcessedTextRegions, 1)
	assert.Equal(t, 0, e.History(model.ModeOCR).Len())
	assert.Equal(t, 0, e.History(model.ModeProcessed).Len())
}

func TestSyncRegionsExport(t *testing.T) {
	remote := &fakeRemote{}
	e := newEditor(t, newSession(), remote)

	out, err := e.SyncRegions(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, remote.lastExport)
	assert.NotNil(t, out.ExportedAt)
	assert.Equal(t, model.StatusEditing, out.Status)
}

func TestRemoteFlowsRequireRemote(t *testing.T) {
	e := newEditor(t, newSession(), nil)
	_, err := e.SyncRegions(context.Background(), false)
	assert.ErrorIs(t, err, ErrNoRemote)
	_, err = e.RemoveText(context.Background())
	assert.ErrorIs(t, err, ErrNoRemote)
}

func TestHistoryReturnsSnapshot(t *testing.T) {
	e := newEditor(t, newSession(), &fakeRemote{})
	_, err := e.AddRegion(nil)
	require.NoError(t, err)

	h := e.History(model.ModeOCR)
	h.Back()
	assert.Equal(t, -1, h.Index())

	assert.True(t, e.CanUndo())
	assert.Equal(t, 0, e.History(model.ModeOCR).Index())

	_, err = e.AddRegion(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Len(), "snapshot does not follow later pushes")
}
