package http

import (
	"encoding/json"
	"fmt"

	"github.com/vovakirdan/wiredraw-server/internal/core"
	"github.com/vovakirdan/wiredraw-server/internal/proto"
)

// inboundToCommand maps a wire message to a core command. Decoding problems
// are reported to the sender and never close the connection.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeStroke:
		var data proto.StrokeData
		if err := decodeData(inbound, &data, true); err != nil {
			return nil, err
		}
		points := make([]core.Point, len(data.Points))
		for i, p := range data.Points {
			points[i] = core.Point{X: p.X, Y: p.Y}
		}
		return &core.Command{Kind: core.CommandStroke, Stroke: &core.Stroke{
			Tool:   core.Tool(data.Tool),
			Color:  data.Color,
			Size:   data.Size,
			Points: points,
			Layer:  layerOrBase(data.Layer),
			Step:   data.Step,
		}}, nil
	case proto.InboundTypeFill:
		var data proto.FillData
		if err := decodeData(inbound, &data, true); err != nil {
			return nil, err
		}
		fill := &core.Fill{
			Patch: core.Snapshot(data.Patch),
			X:     data.X,
			Y:     data.Y,
			Color: data.Color,
			Layer: layerOrBase(data.Layer),
			Step:  data.Step,
		}
		if data.Seed != nil {
			fill.Seed = &core.Point{X: data.Seed.X, Y: data.Seed.Y}
		}
		return &core.Command{Kind: core.CommandFill, Fill: fill}, nil
	case proto.InboundTypeClearCanvas:
		var data proto.ClearData
		if err := decodeData(inbound, &data, false); err != nil {
			return nil, err
		}
		return &core.Command{Kind: core.CommandClearCanvas, Layer: layerOrBase(data.Layer)}, nil
	case proto.InboundTypeSaveState:
		var data proto.SnapshotData
		if err := decodeData(inbound, &data, true); err != nil {
			return nil, err
		}
		return &core.Command{Kind: core.CommandSaveState, Snapshot: core.Snapshot(data.Snapshot)}, nil
	case proto.InboundTypeUndo:
		return &core.Command{Kind: core.CommandUndo}, nil
	case proto.InboundTypeRedo:
		return &core.Command{Kind: core.CommandRedo}, nil
	case proto.InboundTypeRequestState:
		return &core.Command{Kind: core.CommandRequestState}, nil
	case proto.InboundTypeUserSignedUp:
		var data proto.SignUpData
		if err := decodeData(inbound, &data, true); err != nil {
			return nil, err
		}
		return &core.Command{Kind: core.CommandSignUp, Signature: data.Signature}, nil
	case proto.InboundTypeGuideStart:
		var data proto.GuideStartData
		if err := decodeData(inbound, &data, true); err != nil {
			return nil, err
		}
		return &core.Command{Kind: core.CommandGuideStart, ReferenceID: data.ReferenceID}, nil
	case proto.InboundTypeGuideAdvance, proto.InboundTypeGuideRetreat:
		var data proto.GuideMoveData
		if err := decodeData(inbound, &data, false); err != nil {
			return nil, err
		}
		kind := core.CommandGuideAdvance
		if inbound.Type == proto.InboundTypeGuideRetreat {
			kind = core.CommandGuideRetreat
		}
		return &core.Command{Kind: kind, ToStep: data.ToStep}, nil
	case proto.InboundTypeGuideExit:
		var data proto.SnapshotData
		if err := decodeData(inbound, &data, false); err != nil {
			return nil, err
		}
		return &core.Command{Kind: core.CommandGuideExit, Snapshot: core.Snapshot(data.Snapshot)}, nil
	case proto.InboundTypeSaveGuideStep:
		var data proto.GuideStepStateData
		if err := decodeData(inbound, &data, true); err != nil {
			return nil, err
		}
		return &core.Command{Kind: core.CommandSaveGuideStep, Step: data.Step, Snapshot: core.Snapshot(data.Snapshot)}, nil
	case proto.InboundTypeGuideStepUndo:
		return &core.Command{Kind: core.CommandGuideStepUndo}, nil
	case proto.InboundTypeGuideStepRedo:
		return &core.Command{Kind: core.CommandGuideStepRedo}, nil
	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}
	}
}

func decodeData(inbound proto.Inbound, v any, required bool) *proto.Error {
	if len(inbound.Data) == 0 || string(inbound.Data) == "null" {
		if required {
			return &proto.Error{Code: core.ErrCodeBadRequest, Msg: fmt.Sprintf("%s: data is required", inbound.Type)}
		}
		return nil
	}
	if err := json.Unmarshal(inbound.Data, v); err != nil {
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: fmt.Sprintf("%s: %v", inbound.Type, err)}
	}
	return nil
}

func layerOrBase(layer string) core.Layer {
	if layer == "" {
		return core.LayerBase
	}
	return core.Layer(layer)
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	out := proto.Outbound{Type: proto.OutboundTypeEvent, Event: event.Kind.String()}
	switch event.Kind {
	case core.EventInitState:
		init := event.Init
		if init == nil {
			init = &core.InitState{}
		}
		out.Data = proto.InitStateData{
			Protocol:    proto.ProtocolVersion,
			ClientID:    init.ClientID,
			Room:        event.Room,
			Snapshot:    string(init.Snapshot),
			HistoryStep: init.HistoryStep,
			HistoryLen:  init.HistoryLen,
			Guide:       guideData(init.Guide),
			Users:       nonNil(init.Users),
		}
	case core.EventLoadCanvas, core.EventGuideExit:
		out.Data = proto.SnapshotData{Snapshot: string(event.Snapshot)}
	case core.EventApplyStroke:
		out.Data = strokeData(event)
	case core.EventFill:
		out.Data = fillData(event)
	case core.EventClearCanvas:
		out.Data = proto.ClearData{Layer: string(event.Layer), Sender: event.Sender}
	case core.EventGuideStepSync:
		out.Data = guideData(event.Guide)
	case core.EventLoadGuideStepLayer:
		out.Data = proto.GuideStepStateData{Step: event.Step, Snapshot: string(event.Snapshot)}
	case core.EventUserList:
		out.Data = proto.UserListData{Users: nonNil(event.Users)}
	case core.EventError:
		return errorOutbound(event.Error)
	}
	return out
}

func errorOutbound(err *core.CoreError) proto.Outbound {
	if err == nil {
		return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
	}
	return proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: err.Code, Msg: err.Message},
	}
}

func strokeData(event *core.Event) proto.StrokeData {
	s := event.Stroke
	if s == nil {
		return proto.StrokeData{Sender: event.Sender}
	}
	points := make([]proto.Point, len(s.Points))
	for i, p := range s.Points {
		points[i] = proto.Point{X: p.X, Y: p.Y}
	}
	return proto.StrokeData{
		Tool:   string(s.Tool),
		Color:  s.Color,
		Size:   s.Size,
		Points: points,
		Layer:  string(s.Layer),
		Step:   s.Step,
		Sender: event.Sender,
	}
}

func fillData(event *core.Event) proto.FillData {
	f := event.Fill
	if f == nil {
		return proto.FillData{Sender: event.Sender}
	}
	data := proto.FillData{
		Patch:  string(f.Patch),
		X:      f.X,
		Y:      f.Y,
		Color:  f.Color,
		Layer:  string(f.Layer),
		Step:   f.Step,
		Sender: event.Sender,
	}
	if f.Seed != nil {
		data.Seed = &proto.Point{X: f.Seed.X, Y: f.Seed.Y}
	}
	return data
}

func guideData(g *core.GuideState) *proto.GuideData {
	if g == nil {
		return nil
	}
	return &proto.GuideData{
		Active:      g.Active,
		ReferenceID: g.ReferenceID,
		Step:        g.Step,
		StepCount:   g.StepCount,
		Overlay:     string(g.Overlay),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
