// Package http implements the HTTP handlers of the markscope web service.
// Handlers are a thin layer between the chi router and the services: they
// parse and validate requests, call a service, and format the response.
//
// # Routes
//
//	GET  /                             303 to /p1 after the first snapshot load
//	GET  /p{n}                         HTML chart page n
//	GET  /api/pages                    page index
//	GET  /api/charts/{page}            assembled chart as JSON
//	GET  /api/charts/{page}/image      composite PNG or SVG
//	GET  /api/export/marks.xlsx        workbook export
//	GET  /api/export/marks.csv         CSV export of one table
//	GET  /api/snapshot                 loaded snapshot summary
//	POST /api/snapshot/reload          reread the source collections
//	GET  /api/health[/ready|/live]     probes
//	GET  /api/version                  build information
//	GET  /metrics                      Prometheus
//
// {page} is a page number or slug. Chart and image responses carry an ETag
// derived from the snapshot digest and honour If-None-Match.
//
// # Error Handling
//
// All errors are rendered as RFC 7807 problem details by the shared
// errors.ErrorHandler:
//
//	{
//	    "type": "/errors/chart/page-not-found",
//	    "title": "Chart Page Not Found",
//	    "status": 404,
//	    "detail": "unknown chart page: 9",
//	    "instance": "/api/charts/9"
//	}
//
// Page, image and export bodies are buffered before the first byte is
// written, so a late failure still produces a problem response.
//
// # Testing
//
// Handlers are tested with httptest against testify mocks of the service
// interfaces declared in service_interfaces.go.
package http
