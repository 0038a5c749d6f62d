// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package entity

import "slices"

// Kind is the object-kind tag of a stored entity.
type Kind string

const (
	KindWorkspace    Kind = "workspace"
	KindQuiz         Kind = "quiz"
	KindSurvey       Kind = "survey"
	KindQuizRecord   Kind = "quiz_record"
	KindSurveyRecord Kind = "survey_record"
	KindJSON         Kind = "json"

	KindStudentRoster Kind = "student_roster"
	KindTaskList      Kind = "task_list"
	KindEntityIndex   Kind = "entity_index"
)

// WorkspaceKinds are the kinds carried by a workspace export.
var WorkspaceKinds = []Kind{KindWorkspace, KindQuiz, KindSurvey}

// RecordKinds are the kinds carried by a record export.
var RecordKinds = []Kind{KindQuizRecord, KindSurveyRecord, KindJSON}

// In reports whether k is one of kinds.
func (k Kind) In(kinds []Kind) bool {
	return slices.Contains(kinds, k)
}

// Metadata is the authorship and modification stamp of an entity.
// Times are wall-clock Unix seconds. UpdatedAt decides which side wins
// when two copies of an entity are merged.
type Metadata struct {
	CreatedBy string `json:"created_by"`
	CreatedAt int64  `json:"created_at"`
	UpdatedBy string `json:"updated_by"`
	UpdatedAt int64  `json:"updated_at"`
}

// IndexRecord is the entity-index projection of one stored entity.
type IndexRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind Kind   `json:"kind"`

	// Node is the id of the owning entity, if any (the quiz a quiz
	// record was taken against, for example). Empty for roots.
	Node string `json:"node,omitempty"`

	// Path is the display location of the entity within the
	// workspace tree, as maintained by the authoring UI.
	Path string `json:"path,omitempty"`

	Metadata Metadata `json:"metadata"`
}

// NewerThan reports whether r should replace local during a merge.
// Ties keep the local record.
func (r IndexRecord) NewerThan(local IndexRecord) bool {
	return r.Metadata.UpdatedAt > local.Metadata.UpdatedAt
}
