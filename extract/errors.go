package extract

import "github.com/BadWolf1509/licitafacil-sub001/xerr"

var errCancelled = xerr.New(xerr.Cancelled, "extract", "cancelled")

var errInvalidVisionPayload = xerr.New(xerr.StageTransient, "vision_ai", "model reply did not contain a JSON object")
