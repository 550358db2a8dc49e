package dto

type Res struct {
	ResponseCode    string `json:"responseCode"`
	ResponseMessage string `json:"responseMessage"`
}

type JobResponse struct {
	OK     bool       `json:"ok"`
	Report *JobReport `json:"report,omitempty"`
	Error  string     `json:"error,omitempty"`
}

type ListResponse struct {
	OK   bool        `json:"ok"`
	Data interface{} `json:"data"`
}
