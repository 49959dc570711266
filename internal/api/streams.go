package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	kinect "github.com/kevmo314/go-kinect"
	"github.com/kevmo314/go-kinect/internal/events"
	"github.com/kevmo314/go-kinect/pkg/formats"
)

type StreamPath struct {
	Kind string `path:"kind" enum:"rgb,depth" example:"rgb" doc:"Stream name"`
}

type StreamData struct {
	kinect.StreamStats
	Formats   []string           `json:"formats" doc:"Pixel formats the stream can produce"`
	LastFrame *events.FrameEvent `json:"last_frame,omitempty" doc:"Most recent reassembled frame"`
}

type StreamResponse struct {
	Body StreamData
}

type FormatRequest struct {
	StreamPath
	Body struct {
		Format string `json:"format" example:"yuyv" doc:"Pixel format name"`
	}
}

type BrightnessRequest struct {
	StreamPath
	Body struct {
		Brightness int `json:"brightness" minimum:"0" maximum:"65535" example:"32512" doc:"Brightness, 0x7f00 leaves images unchanged"`
	}
}

func (s *Server) stream(kind string) (*kinect.Stream, error) {
	k, err := kinect.ParseStreamKind(kind)
	if err != nil {
		return nil, huma.Error404NotFound("unknown stream " + kind)
	}
	return s.device.Stream(k), nil
}

func (s *Server) streamResponse(st *kinect.Stream) *StreamResponse {
	data := StreamData{StreamStats: st.Stats()}
	list := formats.ColorFormats()
	if st.Kind() == kinect.StreamDepth {
		list = formats.DepthFormats()
	}
	for _, f := range list {
		data.Formats = append(data.Formats, f.String())
	}
	if e, ok := s.lastFrame(st.Kind().String()); ok {
		data.LastFrame = &e
	}
	return &StreamResponse{Body: data}
}

func (s *Server) registerStreamRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-stream",
		Method:      http.MethodGet,
		Path:        "/api/streams/{kind}",
		Summary:     "Get stream",
		Description: "State, format and counters of a stream",
		Tags:        []string{"streams"},
		Errors:      []int{404},
	}, func(ctx context.Context, input *StreamPath) (*StreamResponse, error) {
		st, err := s.stream(input.Kind)
		if err != nil {
			return nil, err
		}
		return s.streamResponse(st), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-stream-format",
		Method:      http.MethodPut,
		Path:        "/api/streams/{kind}/format",
		Summary:     "Set pixel format",
		Description: "Switch an open stream to another pixel format, restarting it if it is streaming",
		Tags:        []string{"streams"},
		Errors:      []int{400, 404, 409, 500},
	}, func(ctx context.Context, input *FormatRequest) (*StreamResponse, error) {
		st, err := s.stream(input.Kind)
		if err != nil {
			return nil, err
		}
		f, err := formats.ParsePixelFormat(input.Body.Format)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid pixel format", err)
		}
		if err := st.SetPixelFormat(f); err != nil {
			return nil, toHTTPError("failed to set pixel format", err)
		}
		return s.streamResponse(st), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-stream-brightness",
		Method:      http.MethodPut,
		Path:        "/api/streams/{kind}/brightness",
		Summary:     "Set brightness",
		Tags:        []string{"streams"},
		Errors:      []int{404},
	}, func(ctx context.Context, input *BrightnessRequest) (*StreamResponse, error) {
		st, err := s.stream(input.Kind)
		if err != nil {
			return nil, err
		}
		st.SetBrightness(input.Body.Brightness)
		return s.streamResponse(st), nil
	})
}
