package gateway

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sendbulk-reconciler/internal/domain/batch"
	"github.com/sendbulk-reconciler/internal/platform/calendar"
)

const (
	soapNamespace    = "http://schemas.xmlsoap.org/soap/envelope/"
	serviceNamespace = "http://tempuri.org/"
	getBulkAction    = `"http://tempuri.org/GetBulkDetails"`
)

var (
	ErrNoResult      = errors.New("response has no GetBulkDetailsResult")
	ErrNoBulkDetails = errors.New("result document has no BulkDetails")
)

type requestEnvelope struct {
	XMLName xml.Name    `xml:"soap:Envelope"`
	XSI     string      `xml:"xmlns:xsi,attr"`
	XSD     string      `xml:"xmlns:xsd,attr"`
	Soap    string      `xml:"xmlns:soap,attr"`
	Body    requestBody `xml:"soap:Body"`
}

type requestBody struct {
	GetBulkDetails getBulkDetails
}

// getBulkDetails is the operation payload. The gateway spells the id
// parameter "bulkdId".
type getBulkDetails struct {
	XMLName  xml.Name `xml:"http://tempuri.org/ GetBulkDetails"`
	Username string   `xml:"username"`
	Password string   `xml:"password"`
	BulkID   string   `xml:"bulkdId"`
}

func buildStatusRequest(username, password, batchID string) ([]byte, error) {
	env := requestEnvelope{
		XSI:  "http://www.w3.org/2001/XMLSchema-instance",
		XSD:  "http://www.w3.org/2001/XMLSchema",
		Soap: soapNamespace,
		Body: requestBody{GetBulkDetails: getBulkDetails{
			Username: username,
			Password: password,
			BulkID:   batchID,
		}},
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(env); err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return buf.Bytes(), nil
}

type responseEnvelope struct {
	Body struct {
		Response struct {
			Result *resultNode `xml:"GetBulkDetailsResult"`
		} `xml:"GetBulkDetailsResponse"`
	} `xml:"Body"`
}

// resultNode captures the result both as text (escaped or CDATA document)
// and as raw inner XML (inline elements).
type resultNode struct {
	Text  string `xml:",chardata"`
	Inner string `xml:",innerxml"`
}

func (r *resultNode) document() string {
	if text := strings.TrimSpace(r.Text); strings.HasPrefix(text, "<") {
		return text
	}
	if inner := strings.TrimSpace(r.Inner); strings.HasPrefix(inner, "<") && !strings.HasPrefix(inner, "<![CDATA[") {
		return inner
	}
	return ""
}

type bulkDetails struct {
	SendStatus   *string `xml:"SendStatus"`
	SentCount    *string `xml:"SentCount"`
	FailedCount  *string `xml:"FailedCount"`
	Descriptions *string `xml:"Descriptions"`
	SentDate     *string `xml:"SentDate"`
}

// parseStatusResponse extracts the first BulkDetails of a GetBulkDetails
// response. Missing optional fields take their defaults; a SentDate that
// cannot be converted is dropped.
func parseStatusResponse(body []byte, loc *time.Location) (*batch.GatewayStatus, error) {
	var env responseEnvelope
	if err := newDecoder(bytes.NewReader(body)).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Body.Response.Result == nil {
		return nil, ErrNoResult
	}

	doc := env.Body.Response.Result.document()
	if doc == "" {
		return nil, ErrNoBulkDetails
	}

	details, err := findBulkDetails(doc)
	if err != nil {
		return nil, err
	}

	status := &batch.GatewayStatus{
		RawStatusCode:   intOr(details.SendStatus, batch.GatewayCodeMissing),
		SentCount:       intOr(details.SentCount, 0),
		FailedCount:     intOr(details.FailedCount, 0),
		OriginalPayload: doc,
	}
	if details.Descriptions != nil {
		status.Diagnostic = strings.TrimSpace(*details.Descriptions)
	}
	if details.SentDate != nil && strings.TrimSpace(*details.SentDate) != "" {
		if t, err := calendar.JalaliToGregorian(*details.SentDate, loc); err == nil {
			utc := t.UTC()
			status.CompletedAt = &utc
		}
	}

	return status, nil
}

func findBulkDetails(doc string) (*bulkDetails, error) {
	dec := newDecoder(strings.NewReader(doc))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, ErrNoBulkDetails
		}
		if err != nil {
			return nil, fmt.Errorf("decode result document: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "BulkDetails" {
			continue
		}
		var details bulkDetails
		if err := dec.DecodeElement(&details, &start); err != nil {
			return nil, fmt.Errorf("decode BulkDetails: %w", err)
		}
		return &details, nil
	}
}

// newDecoder accepts any declared encoding; the gateway labels its already
// decoded inner document utf-16.
func newDecoder(r io.Reader) *xml.Decoder {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	return dec
}

func intOr(s *string, def int) int {
	if s == nil {
		return def
	}
	n, err := strconv.Atoi(calendar.NormalizeDigits(strings.TrimSpace(*s)))
	if err != nil {
		return def
	}
	return n
}
