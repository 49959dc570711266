package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	kinect "github.com/kevmo314/go-kinect"
)

type LEDBody struct {
	LED  int    `json:"led" minimum:"0" maximum:"6" example:"1" doc:"LED state code"`
	Name string `json:"name,omitempty" readOnly:"true" example:"green" doc:"LED state name"`
}

type LEDResponse struct {
	Body LEDBody
}

type LEDRequest struct {
	Body struct {
		LED int `json:"led" minimum:"0" maximum:"6" example:"2" doc:"0 off, 1 green, 2 red, 3 yellow, 4 blink yellow, 5 blink green, 6 blink red yellow"`
	}
}

type TiltBody struct {
	Degrees  int `json:"degrees" example:"0" doc:"Tilt from horizontal in degrees"`
	Position int `json:"position" example:"31" doc:"Tilt position from 0 (down) to 62 (up)"`
}

type TiltResponse struct {
	Body TiltBody
}

type TiltRequest struct {
	Body struct {
		Degrees  *int `json:"degrees,omitempty" minimum:"-31" maximum:"31" doc:"Tilt in degrees; wins over position"`
		Position *int `json:"position,omitempty" minimum:"0" maximum:"62" doc:"Tilt position, 31 is level"`
	}
}

type AccelResponse struct {
	Body struct {
		X    int16   `json:"x" doc:"Raw x axis"`
		Y    int16   `json:"y" doc:"Raw y axis"`
		Z    int16   `json:"z" doc:"Raw z axis"`
		XMKS float64 `json:"x_mks" doc:"x axis in m/s²"`
		YMKS float64 `json:"y_mks" doc:"y axis in m/s²"`
		ZMKS float64 `json:"z_mks" doc:"z axis in m/s²"`
	}
}

func (s *Server) registerMotorRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-led",
		Method:      http.MethodGet,
		Path:        "/api/led",
		Summary:     "Get LED",
		Tags:        []string{"motor"},
		Errors:      []int{404},
	}, func(ctx context.Context, input *struct{}) (*LEDResponse, error) {
		m := s.device.Motor()
		if m == nil {
			return nil, toHTTPError("no motor", kinect.ErrNoMotor)
		}
		led := m.LED()
		return &LEDResponse{Body: LEDBody{LED: int(led), Name: led.String()}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-led",
		Method:      http.MethodPut,
		Path:        "/api/led",
		Summary:     "Set LED",
		Tags:        []string{"motor"},
		Errors:      []int{400, 404, 500},
	}, func(ctx context.Context, input *LEDRequest) (*LEDResponse, error) {
		led := kinect.LED(input.Body.LED)
		if err := s.device.SetLED(led); err != nil {
			return nil, toHTTPError("failed to set led", err)
		}
		return &LEDResponse{Body: LEDBody{LED: int(led), Name: led.String()}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-tilt",
		Method:      http.MethodGet,
		Path:        "/api/tilt",
		Summary:     "Get tilt",
		Tags:        []string{"motor"},
		Errors:      []int{404},
	}, func(ctx context.Context, input *struct{}) (*TiltResponse, error) {
		m := s.device.Motor()
		if m == nil {
			return nil, toHTTPError("no motor", kinect.ErrNoMotor)
		}
		return tiltResponse(m.Tilt()), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-tilt",
		Method:      http.MethodPut,
		Path:        "/api/tilt",
		Summary:     "Set tilt",
		Tags:        []string{"motor"},
		Errors:      []int{400, 404, 500},
	}, func(ctx context.Context, input *TiltRequest) (*TiltResponse, error) {
		var degrees int
		switch {
		case input.Body.Degrees != nil:
			degrees = *input.Body.Degrees
		case input.Body.Position != nil:
			d, err := kinect.ParseTiltRaw([]byte{byte(*input.Body.Position)})
			if err != nil {
				return nil, toHTTPError("invalid tilt position", err)
			}
			degrees = d
		default:
			return nil, huma.Error400BadRequest("degrees or position is required")
		}
		if err := s.device.SetTilt(degrees); err != nil {
			return nil, toHTTPError("failed to set tilt", err)
		}
		return tiltResponse(s.device.Motor().Tilt()), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-accel",
		Method:      http.MethodGet,
		Path:        "/api/accel",
		Summary:     "Read accelerometer",
		Tags:        []string{"motor"},
		Errors:      []int{404, 500},
	}, func(ctx context.Context, input *struct{}) (*AccelResponse, error) {
		x, y, z, err := s.device.Accelerometer()
		if err != nil {
			return nil, toHTTPError("failed to read accelerometer", err)
		}
		resp := &AccelResponse{}
		resp.Body.X, resp.Body.Y, resp.Body.Z = x, y, z
		scale := kinect.StandardGravity / kinect.AccelCountsPerG
		resp.Body.XMKS = float64(x) * scale
		resp.Body.YMKS = float64(y) * scale
		resp.Body.ZMKS = float64(z) * scale
		return resp, nil
	})
}

func tiltResponse(degrees int) *TiltResponse {
	return &TiltResponse{Body: TiltBody{Degrees: degrees, Position: kinect.TiltPosition(degrees)}}
}
