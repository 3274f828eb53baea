package observability

const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MExternalRequests        MetricKey = "external_requests_total"
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"
	MStockDeductions         MetricKey = "stock_deductions_total"
	MTokenValidations        MetricKey = "submit_token_validations_total"
	MRecordsArchived         MetricKey = "stock_records_archived_total"
)
