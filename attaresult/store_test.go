// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package attaresult

import (
	"reflect"
	"testing"

	"github.com/azeff/Attabench/benchsample"
	"github.com/azeff/Attabench/benchtime"
)

func ms(t *testing.T, n string) benchtime.Time {
	t.Helper()
	d, err := benchtime.ParseTime(n + "ms")
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	return d
}

func names(tasks []*Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Name()
	}
	return out
}

func TestApplyTaskList(t *testing.T) {
	s := New()
	s.ApplyTaskList([]string{"alpha", "beta"})
	if got, want := names(s.Tasks()), []string{"alpha", "beta"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("tasks = %v, want %v", got, want)
	}
	s.AddMeasurement("alpha", 16, ms(t, "10"))

	// beta has no samples and drops out of the fresh list: pruned.
	// alpha keeps its data; gamma is appended runnable.
	s.ApplyTaskList([]string{"alpha", "gamma"})
	if got, want := names(s.Tasks()), []string{"alpha", "gamma"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("tasks after refresh = %v, want %v", got, want)
	}
	if tk := s.Task("alpha"); !tk.Runnable() || tk.SampleCount() != 1 {
		t.Errorf("alpha: runnable=%v samples=%d, want true, 1", tk.Runnable(), tk.SampleCount())
	}
	if tk := s.Task("gamma"); !tk.Runnable() || !tk.Checked() {
		t.Errorf("gamma: runnable=%v checked=%v, want true, true", tk.Runnable(), tk.Checked())
	}

	// A task with samples is never dropped even when missing from a
	// fresh list; it only loses runnability.
	s.ApplyTaskList([]string{"gamma"})
	alpha := s.Task("alpha")
	if alpha == nil {
		t.Fatal("alpha with samples was dropped by a task-list refresh")
	}
	if alpha.Runnable() {
		t.Errorf("alpha still runnable after dropping out of the list")
	}

	// Once its samples are deleted, the next refresh prunes it.
	s.DeleteResults(nil)
	s.ApplyTaskList([]string{"gamma"})
	if s.Task("alpha") != nil {
		t.Errorf("alpha survived refresh with no samples and no runnability")
	}
}

func TestAddMeasurementCreatesTask(t *testing.T) {
	s := New()
	s.AddMeasurement("fresh", 1024, ms(t, "5"))
	tk := s.Task("fresh")
	if tk == nil {
		t.Fatal("measurement did not create its task")
	}
	if tk.Runnable() {
		t.Errorf("task created by measurement is runnable before any task list")
	}
	if tk.SampleCount() != 1 || tk.Sample(1024) == nil {
		t.Errorf("sample not recorded: count=%d", tk.SampleCount())
	}
}

func TestTaskBounds(t *testing.T) {
	s := New()
	s.AddMeasurement("x", 4, ms(t, "8"))
	s.AddMeasurement("x", 16, ms(t, "32"))
	s.AddMeasurement("x", 16, ms(t, "32"))
	tk := s.Task("x")

	sizes, times, ok := tk.Bounds(benchsample.Minimum, false)
	if !ok {
		t.Fatal("Bounds reported no data")
	}
	if sizes != (SizeRange{4, 16}) {
		t.Errorf("size bounds = %+v, want {4 16}", sizes)
	}
	if times.Lo.Seconds() != "0.008" || times.Hi.Seconds() != "0.032" {
		t.Errorf("time bounds = [%s, %s], want [0.008, 0.032]",
			times.Lo.Seconds(), times.Hi.Seconds())
	}

	// Amortized: 8ms/4 = 2ms, 32ms/16 = 2ms.
	_, times, ok = tk.Bounds(benchsample.Minimum, true)
	if !ok || times.Lo.Seconds() != "0.002" || times.Hi.Seconds() != "0.002" {
		t.Errorf("amortized bounds = [%s, %s], want [0.002, 0.002]",
			times.Lo.Seconds(), times.Hi.Seconds())
	}

	// Sigma bands resolve only on cells with two or more samples, so
	// bounds shrink to the size-16 cell.
	sizes, _, ok = tk.Bounds(benchsample.Sigma(2), false)
	if !ok || sizes != (SizeRange{16, 16}) {
		t.Errorf("sigma bounds = %+v, %v, want {16 16}, true", sizes, ok)
	}

	if _, _, ok := s.Task("x").Bounds(benchsample.Band{}, false); ok {
		t.Errorf("Bounds resolved an invalid band")
	}
}

func TestDeleteResultsRange(t *testing.T) {
	s := New()
	for _, size := range []int64{1, 8, 64, 512} {
		s.AddMeasurement("x", size, ms(t, "1"))
	}
	r := SizeRange{8, 64}
	s.DeleteResults(&r)
	tk := s.Task("x")
	if got, want := tk.Sizes(), []int64{1, 512}; !reflect.DeepEqual(got, want) {
		t.Errorf("sizes after ranged delete = %v, want %v", got, want)
	}
	if tk.SampleCount() != 2 {
		t.Errorf("sample count after ranged delete = %d, want 2", tk.SampleCount())
	}
	s.DeleteResults(nil)
	if tk.SampleCount() != 0 || len(tk.Sizes()) != 0 {
		t.Errorf("full delete left %d samples", tk.SampleCount())
	}
}

func TestSelectedSizes(t *testing.T) {
	tests := []struct {
		name               string
		minScale, maxScale int
		subdiv             int
		want               []int64
	}{
		{"whole powers", 0, 4, 1, []int64{1, 2, 4, 8, 16}},
		{"two per octave", 0, 2, 2, []int64{1, 2, 4}},
		{"three per octave", 1, 2, 3, []int64{2, 3, 4}},
		{"single size", 3, 3, 8, []int64{8}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := New()
			o := s.RunOptions()
			o.MinimumScale, o.MaximumScale, o.Subdivisions = test.minScale, test.maxScale, test.subdiv
			s.SetRunOptions(o)
			if got := s.SelectedSizes(); !reflect.DeepEqual(got, test.want) {
				t.Errorf("SelectedSizes() = %v, want %v", got, test.want)
			}
		})
	}
}

func TestRunOptionNormalization(t *testing.T) {
	s := New()
	o := s.RunOptions()
	o.MinimumScale, o.MaximumScale = 40, -5
	o.MinimumDuration, o.MaximumDuration = ms(t, "100"), ms(t, "10")
	o.Iterations = 0
	s.SetRunOptions(o)

	o = s.RunOptions()
	if o.MinimumScale != 0 || o.MaximumScale != 32 {
		t.Errorf("scales = %d..%d, want 0..32", o.MinimumScale, o.MaximumScale)
	}
	if o.MinimumDuration.Cmp(o.MaximumDuration) > 0 {
		t.Errorf("duration range left crossed: %s > %s", o.MinimumDuration, o.MaximumDuration)
	}
	if o.Iterations != 1 {
		t.Errorf("iterations = %d, want clamp to 1", o.Iterations)
	}
}

func TestObservers(t *testing.T) {
	s := New()
	var got []Change
	s.Subscribe(func(c Change) { got = append(got, c) })

	s.ApplyTaskList([]string{"a"})
	s.AddMeasurement("a", 2, ms(t, "1"))
	s.SetTaskChecked("a", false)
	s.SetTaskChecked("a", false) // no change, no event
	s.SetRunOptions(s.RunOptions())
	s.SetChartOptions(s.ChartOptions())
	s.DeleteResults(nil)

	want := []Change{
		ChangedTaskList,
		ChangedMeasurements,
		ChangedTaskSelection,
		ChangedRunOptions,
		ChangedChartOptions,
		ChangedMeasurements,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("observed changes = %v, want %v", got, want)
	}
}

func TestSnapshotTasksIsolation(t *testing.T) {
	s := New()
	s.AddMeasurement("a", 2, ms(t, "1"))
	snap := s.SnapshotTasks()
	s.AddMeasurement("a", 2, ms(t, "1"))
	if snap[0].SampleCount() != 1 {
		t.Errorf("snapshot count = %d after later mutation, want 1", snap[0].SampleCount())
	}
	if s.Task("a").SampleCount() != 2 {
		t.Errorf("live count = %d, want 2", s.Task("a").SampleCount())
	}
}
