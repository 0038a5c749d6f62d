// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package entity

import (
	"slices"

	"github.com/invopop/jsonschema"

	"github.com/bureau-foundation/examvault/lib/vaulterr"
)

// documentKinds maps each kind accepted as a standalone JSON document
// to a zero value of its payload type. The roster, task list and index
// are maintained by the vault and are not listed.
var documentKinds = map[Kind]any{
	KindWorkspace:    Workspace{},
	KindQuiz:         Quiz{},
	KindSurvey:       Survey{},
	KindQuizRecord:   QuizRecord{},
	KindSurveyRecord: SurveyRecord{},
	KindJSON:         Document{},
}

// DocumentKinds returns the kinds [Schema] knows, sorted.
func DocumentKinds() []Kind {
	kinds := make([]Kind, 0, len(documentKinds))
	for kind := range documentKinds {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	return kinds
}

// Schema returns the JSON Schema of the payload stored for kind. The
// schema is inlined (no $defs) so it can be handed to editors as is.
func Schema(kind Kind) (*jsonschema.Schema, error) {
	value, ok := documentKinds[kind]
	if !ok {
		return nil, vaulterr.New(vaulterr.ErrInvalid, "no schema for entity kind %q", kind)
	}
	reflector := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	schema := reflector.Reflect(value)
	schema.Title = string(kind)
	return schema, nil
}
