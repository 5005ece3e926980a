// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-scale library.

package dynscale

import (
	"fmt"

	"github.com/pk910/dynamic-scale/scaletypes"
	"github.com/pk910/dynamic-scale/scaleutils"
)

// Event is one decoded event record from the System.Events storage value.
// Phase tells where in block execution the event fired (ApplyExtrinsic with
// the extrinsic index, Finalization or Initialization), Event is the decoded
// event variant named "Module.Event" and Topics holds the record's topic
// hashes.
type Event struct {
	Phase  *scaletypes.Value `json:"phase"`
	Event  *scaletypes.Value `json:"event"`
	Topics *scaletypes.Value `json:"topics"`
}

// DecodeEvents decodes a System.Events storage value: a SCALE vector of event
// records.
//
// Parameters:
//   - block: block height selecting the runtime era
//   - data: the raw storage value bytes
//
// Returns:
//   - []*Event: the decoded event records in emission order
//   - error: an error if any record fails to decode
func (d *Decoder) DecodeEvents(block uint64, data []byte) ([]*Event, error) {
	entry, err := d.runtimeFor(block)
	if err != nil {
		return nil, err
	}

	reader := scaleutils.NewBufferReader(data)
	st := &decodeState{decoder: d, entry: entry, block: block, reader: reader}

	count, err := reader.ReadCompactLength()
	if err != nil {
		return nil, fmt.Errorf("cannot read event count: %v", err)
	}
	if count > reader.Len() {
		return nil, scaleutils.ErrUnexpectedEOF
	}

	events := make([]*Event, 0, count)
	for i := 0; i < count; i++ {
		event, err := st.decodeEventRecord()
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, event)
	}

	if reader.Len() > 0 {
		return nil, fmt.Errorf("%w (consumed: %v, size: %v)", scaleutils.ErrTrailingBytes, reader.Position(), len(data))
	}
	return events, nil
}

func (st *decodeState) decodeEventRecord() (*Event, error) {
	phase, err := st.decodeEventPhase()
	if err != nil {
		return nil, err
	}

	moduleIdx, err := st.reader.ReadUint8()
	if err != nil {
		return nil, st.wrap(err, "event")
	}
	module := st.entry.meta.ModuleByEventIndex(moduleIdx)
	if module == nil {
		return nil, fmt.Errorf("no module with event index %d", moduleIdx)
	}
	eventIdx, err := st.reader.ReadUint8()
	if err != nil {
		return nil, st.wrap(err, "event")
	}
	eventMeta := module.EventByIndex(eventIdx)
	if eventMeta == nil {
		return nil, fmt.Errorf("module %s has no event with index %d", module.Name, eventIdx)
	}

	name := module.Name + "." + eventMeta.Name
	fields := make([]scaletypes.ValueField, 0, len(eventMeta.Args))
	for _, arg := range eventMeta.Args {
		id, err := st.entry.compiler.compile(module.Name, arg.Type, st.block)
		if err != nil {
			return nil, fmt.Errorf("event %s argument %s: %w", name, arg.Name, err)
		}
		value, err := st.decodeType(id, joinPath(name, arg.Name))
		if err != nil {
			return nil, err
		}
		fields = append(fields, scaletypes.ValueField{Name: arg.Name, Value: value})
	}

	topics, err := st.decodeEventTopics()
	if err != nil {
		return nil, err
	}

	return &Event{
		Phase:  phase,
		Event:  scaletypes.CallValue(name, fields...),
		Topics: topics,
	}, nil
}

func (st *decodeState) decodeEventPhase() (*scaletypes.Value, error) {
	tag, err := st.reader.ReadUint8()
	if err != nil {
		return nil, st.wrap(err, "phase")
	}
	switch tag {
	case 0:
		index, err := st.reader.ReadUint32()
		if err != nil {
			return nil, st.wrap(err, "phase")
		}
		return scaletypes.VariantValue("ApplyExtrinsic",
			scaletypes.ValueField{Value: scaletypes.UintValue(uint64(index))}), nil
	case 1:
		return scaletypes.VariantValue("Finalization"), nil
	case 2:
		return scaletypes.VariantValue("Initialization"), nil
	default:
		return nil, fmt.Errorf("%w %d for event phase", scaleutils.ErrInvalidEnumVariant, tag)
	}
}

func (st *decodeState) decodeEventTopics() (*scaletypes.Value, error) {
	id, err := st.compileFirstType("Vec<Hash>", "Vec<[u8; 32]>")
	if err != nil {
		return nil, fmt.Errorf("cannot resolve event topics type: %w", err)
	}
	return st.decodeType(id, "topics")
}
