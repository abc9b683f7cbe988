// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package attaresult

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/azeff/Attabench/benchsample"
	"github.com/azeff/Attabench/benchtime"
)

// The wire document. Every option field is optional on read; absent
// fields take the documented defaults. Exact durations travel as
// decimal-seconds strings, human-edited options as JSON numbers.
type jsonDoc struct {
	Source string     `json:"source,omitempty"`
	Tasks  []jsonTask `json:"tasks"`
	Run    *jsonRun   `json:"run,omitempty"`
	Chart  *jsonChart `json:"chart,omitempty"`
}

type jsonTask struct {
	Name    string                `json:"name"`
	Checked *bool                 `json:"checked,omitempty"`
	Samples map[string]jsonSample `json:"samples,omitempty"`
}

type jsonSample struct {
	Count      int64  `json:"count"`
	Minimum    string `json:"minimum"`
	Maximum    string `json:"maximum"`
	Sum        string `json:"sum"`
	SumSquared string `json:"sumSquared"`
}

type jsonRun struct {
	Iterations      *int         `json:"iterations,omitempty"`
	MinimumDuration *json.Number `json:"minimumDuration,omitempty"`
	MaximumDuration *json.Number `json:"maximumDuration,omitempty"`
	MinimumScale    *int         `json:"minimumScale,omitempty"`
	MaximumScale    *int         `json:"maximumScale,omitempty"`
	Subdivisions    *int         `json:"subdivisions,omitempty"`
}

type jsonChart struct {
	Amortized        *bool        `json:"amortized,omitempty"`
	LogarithmicSize  *bool        `json:"logarithmicSize,omitempty"`
	LogarithmicTime  *bool        `json:"logarithmicTime,omitempty"`
	TopBand          *string      `json:"topBand,omitempty"`
	CenterBand       *string      `json:"centerBand,omitempty"`
	BottomBand       *string      `json:"bottomBand,omitempty"`
	Highlight        *bool        `json:"highlightSelectedSizes,omitempty"`
	SizeRange        *[2]int64    `json:"sizeRange,omitempty"`
	IncludeAllSizes  *bool        `json:"includeAllMeasuredSizes,omitempty"`
	TimeRange        *[2]string   `json:"timeRange,omitempty"`
	IncludeAllTimes  *bool        `json:"includeAllMeasuredTimes,omitempty"`
	Theme            *string      `json:"theme,omitempty"`
	ProgressInterval *json.Number `json:"progressRefreshInterval,omitempty"`
	ChartInterval    *json.Number `json:"chartRefreshInterval,omitempty"`
}

// Encode writes the document as indented JSON.
func (s *Store) Encode(w io.Writer) error {
	s.mu.Lock()
	doc := jsonDoc{
		Source: s.source,
		Tasks:  make([]jsonTask, 0, len(s.tasks)),
		Run:    encodeRun(s.run),
		Chart:  encodeChart(s.chart),
	}
	for _, t := range s.tasks {
		jt := jsonTask{
			Name:    t.name,
			Checked: ptr(t.checked),
		}
		if len(t.samples) > 0 {
			jt.Samples = make(map[string]jsonSample, len(t.samples))
			for size, sample := range t.samples {
				jt.Samples[strconv.FormatInt(size, 10)] = jsonSample{
					Count:      sample.Count(),
					Minimum:    sample.Minimum().Seconds(),
					Maximum:    sample.Maximum().Seconds(),
					Sum:        sample.Sum().Seconds(),
					SumSquared: sample.SumSquared().Seconds(),
				}
			}
		}
		doc.Tasks = append(doc.Tasks, jt)
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Save writes the document to path atomically, replacing any previous
// file only after the new one is fully written.
func (s *Store) Save(path string) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := s.Encode(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Decode reads one document. On any error no Store is returned, so a
// caller never sees partially installed state.
func Decode(r io.Reader) (*Store, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var doc jsonDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("malformed result document: %w", err)
	}

	s := New()
	s.source = doc.Source
	for _, jt := range doc.Tasks {
		if jt.Name == "" {
			return nil, fmt.Errorf("malformed result document: task with empty name")
		}
		if _, ok := s.index[jt.Name]; ok {
			return nil, fmt.Errorf("malformed result document: duplicate task %q", jt.Name)
		}
		t := newTask(jt.Name)
		if jt.Checked != nil {
			t.checked = *jt.Checked
		}
		for key, js := range jt.Samples {
			size, err := strconv.ParseInt(key, 10, 64)
			if err != nil || size < 1 {
				return nil, fmt.Errorf("task %q: invalid size %q", jt.Name, key)
			}
			sample, err := decodeSample(js)
			if err != nil {
				return nil, fmt.Errorf("task %q, size %d: %w", jt.Name, size, err)
			}
			t.samples[size] = sample
			t.sampleCount += sample.Count()
		}
		s.tasks = append(s.tasks, t)
		s.index[jt.Name] = t
	}
	if err := decodeRun(&s.run, doc.Run); err != nil {
		return nil, err
	}
	if err := decodeChart(&s.chart, doc.Chart); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads the document at path.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func decodeSample(js jsonSample) (*benchsample.TimeSample, error) {
	if js.Count < 1 {
		return nil, fmt.Errorf("sample count must be positive, have %d", js.Count)
	}
	min, err := benchtime.ParseSeconds(js.Minimum)
	if err != nil {
		return nil, err
	}
	max, err := benchtime.ParseSeconds(js.Maximum)
	if err != nil {
		return nil, err
	}
	sum, err := benchtime.ParseSeconds(js.Sum)
	if err != nil {
		return nil, err
	}
	sumSq, err := benchtime.ParseSecondsSquared(js.SumSquared)
	if err != nil {
		return nil, err
	}
	return benchsample.NewTimeSample(js.Count, min, max, sum, sumSq)
}

func encodeRun(o RunOptions) *jsonRun {
	return &jsonRun{
		Iterations:      ptr(o.Iterations),
		MinimumDuration: numPtr(o.MinimumDuration.Seconds()),
		MaximumDuration: numPtr(o.MaximumDuration.Seconds()),
		MinimumScale:    ptr(o.MinimumScale),
		MaximumScale:    ptr(o.MaximumScale),
		Subdivisions:    ptr(o.Subdivisions),
	}
}

func decodeRun(o *RunOptions, jr *jsonRun) error {
	if jr == nil {
		return nil
	}
	if jr.Iterations != nil {
		o.Iterations = *jr.Iterations
	}
	if jr.MinimumDuration != nil {
		d, err := benchtime.ParseSeconds(string(*jr.MinimumDuration))
		if err != nil {
			return fmt.Errorf("run options: %w", err)
		}
		o.MinimumDuration = d
	}
	if jr.MaximumDuration != nil {
		d, err := benchtime.ParseSeconds(string(*jr.MaximumDuration))
		if err != nil {
			return fmt.Errorf("run options: %w", err)
		}
		o.MaximumDuration = d
	}
	if jr.MinimumScale != nil {
		o.MinimumScale = *jr.MinimumScale
	}
	if jr.MaximumScale != nil {
		o.MaximumScale = *jr.MaximumScale
	}
	if jr.Subdivisions != nil {
		o.Subdivisions = *jr.Subdivisions
	}
	o.normalize()
	return nil
}

func encodeChart(o ChartOptions) *jsonChart {
	jc := &jsonChart{
		Amortized:        ptr(o.Amortized),
		LogarithmicSize:  ptr(o.LogarithmicSize),
		LogarithmicTime:  ptr(o.LogarithmicTime),
		TopBand:          ptr(o.TopBand.String()),
		CenterBand:       ptr(o.CenterBand.String()),
		BottomBand:       ptr(o.BottomBand.String()),
		Highlight:        ptr(o.HighlightSelectedSizes),
		IncludeAllSizes:  ptr(o.IncludeAllMeasuredSizes),
		IncludeAllTimes:  ptr(o.IncludeAllMeasuredTimes),
		Theme:            ptr(o.Theme),
		ProgressInterval: numPtr(formatInterval(o.ProgressRefreshInterval)),
		ChartInterval:    numPtr(formatInterval(o.ChartRefreshInterval)),
	}
	if o.DisplaySizeRange != nil {
		jc.SizeRange = &[2]int64{o.DisplaySizeRange.Lo, o.DisplaySizeRange.Hi}
	}
	if o.DisplayTimeRange != nil {
		jc.TimeRange = &[2]string{o.DisplayTimeRange.Lo.Seconds(), o.DisplayTimeRange.Hi.Seconds()}
	}
	return jc
}

func decodeChart(o *ChartOptions, jc *jsonChart) error {
	if jc == nil {
		return nil
	}
	if jc.Amortized != nil {
		o.Amortized = *jc.Amortized
	}
	if jc.LogarithmicSize != nil {
		o.LogarithmicSize = *jc.LogarithmicSize
	}
	if jc.LogarithmicTime != nil {
		o.LogarithmicTime = *jc.LogarithmicTime
	}
	if err := decodeBand(&o.TopBand, jc.TopBand); err != nil {
		return fmt.Errorf("chart options: top band: %w", err)
	}
	if err := decodeBand(&o.CenterBand, jc.CenterBand); err != nil {
		return fmt.Errorf("chart options: center band: %w", err)
	}
	if err := decodeBand(&o.BottomBand, jc.BottomBand); err != nil {
		return fmt.Errorf("chart options: bottom band: %w", err)
	}
	if jc.Highlight != nil {
		o.HighlightSelectedSizes = *jc.Highlight
	}
	if jc.SizeRange != nil {
		o.DisplaySizeRange = &SizeRange{jc.SizeRange[0], jc.SizeRange[1]}
	}
	if jc.IncludeAllSizes != nil {
		o.IncludeAllMeasuredSizes = *jc.IncludeAllSizes
	}
	if jc.TimeRange != nil {
		lo, err := benchtime.ParseSeconds(jc.TimeRange[0])
		if err != nil {
			return fmt.Errorf("chart options: time range: %w", err)
		}
		hi, err := benchtime.ParseSeconds(jc.TimeRange[1])
		if err != nil {
			return fmt.Errorf("chart options: time range: %w", err)
		}
		o.DisplayTimeRange = &TimeRange{lo, hi}
	}
	if jc.IncludeAllTimes != nil {
		o.IncludeAllMeasuredTimes = *jc.IncludeAllTimes
	}
	if jc.Theme != nil {
		o.Theme = *jc.Theme
	}
	if err := decodeInterval(&o.ProgressRefreshInterval, jc.ProgressInterval); err != nil {
		return fmt.Errorf("chart options: progress refresh interval: %w", err)
	}
	if err := decodeInterval(&o.ChartRefreshInterval, jc.ChartInterval); err != nil {
		return fmt.Errorf("chart options: chart refresh interval: %w", err)
	}
	o.normalize()
	return nil
}

// decodeBand applies an optional band string: absent keeps the
// default, empty clears the band.
func decodeBand(dst *benchsample.Band, src *string) error {
	if src == nil {
		return nil
	}
	if *src == "" {
		*dst = benchsample.Band{}
		return nil
	}
	b, err := benchsample.ParseBand(*src)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func decodeInterval(dst *time.Duration, src *json.Number) error {
	if src == nil {
		return nil
	}
	f, err := strconv.ParseFloat(string(*src), 64)
	if err != nil {
		return fmt.Errorf("invalid interval %q", string(*src))
	}
	*dst = time.Duration(f * float64(time.Second))
	return nil
}

func formatInterval(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'g', -1, 64)
}

func numPtr(s string) *json.Number {
	n := json.Number(s)
	return &n
}

func ptr[T any](v T) *T { return &v }
