package docx

import "encoding/xml"

// XML namespaces used in the generated parts
const (
	nsW   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsR   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsWP  = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	nsA   = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsPic = "http://schemas.openxmlformats.org/drawingml/2006/picture"
)

// Element names carry their prefix literally; the namespaces are declared
// once on the root element.

// documentXML is word/document.xml.
type documentXML struct {
	XMLName xml.Name `xml:"w:document"`
	W       string   `xml:"xmlns:w,attr"`
	R       string   `xml:"xmlns:r,attr"`
	WP      string   `xml:"xmlns:wp,attr"`
	A       string   `xml:"xmlns:a,attr"`
	Pic     string   `xml:"xmlns:pic,attr"`
	Body    bodyXML  `xml:"w:body"`
}

// bodyXML keeps paragraphs and tables in document order.
type bodyXML struct {
	Content []any
	SectPr  sectPrXML `xml:"w:sectPr"`
}

type valXML struct {
	Val string `xml:"w:val,attr"`
}

type emptyXML struct{}

// paragraphXML represents <w:p>.
type paragraphXML struct {
	XMLName xml.Name           `xml:"w:p"`
	Props   *paragraphPropsXML `xml:"w:pPr,omitempty"`
	Runs    []runXML
}

type paragraphPropsXML struct {
	Style    *valXML   `xml:"w:pStyle,omitempty"`
	KeepNext *emptyXML `xml:"w:keepNext,omitempty"`
	Jc       *valXML   `xml:"w:jc,omitempty"`
}

// runXML represents <w:r>; Content holds text, breaks and drawings.
type runXML struct {
	XMLName xml.Name `xml:"w:r"`
	Content []any
}

type textXML struct {
	XMLName xml.Name `xml:"w:t"`
	Space   string   `xml:"xml:space,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type breakXML struct {
	XMLName xml.Name `xml:"w:br"`
	Type    string   `xml:"w:type,attr,omitempty"`
}

// tableXML represents <w:tbl>.
type tableXML struct {
	XMLName xml.Name      `xml:"w:tbl"`
	Props   tablePropsXML `xml:"w:tblPr"`
	Grid    tableGridXML  `xml:"w:tblGrid"`
	Rows    []tableRowXML
}

type tablePropsXML struct {
	Style  valXML   `xml:"w:tblStyle"`
	Width  widthXML `xml:"w:tblW"`
	Layout *typeXML `xml:"w:tblLayout,omitempty"`
}

type widthXML struct {
	W    int    `xml:"w:w,attr"`
	Type string `xml:"w:type,attr"`
}

type typeXML struct {
	Type string `xml:"w:type,attr"`
}

type tableGridXML struct {
	Cols []gridColXML
}

type gridColXML struct {
	XMLName xml.Name `xml:"w:gridCol"`
	W       int      `xml:"w:w,attr"`
}

type tableRowXML struct {
	XMLName xml.Name     `xml:"w:tr"`
	Props   *rowPropsXML `xml:"w:trPr,omitempty"`
	Cells   []tableCellXML
}

type rowPropsXML struct {
	Header *emptyXML `xml:"w:tblHeader,omitempty"`
}

type tableCellXML struct {
	XMLName    xml.Name     `xml:"w:tc"`
	Props      cellPropsXML `xml:"w:tcPr"`
	Paragraphs []paragraphXML
}

type cellPropsXML struct {
	Width   widthXML    `xml:"w:tcW"`
	Shading *shadingXML `xml:"w:shd,omitempty"`
}

type shadingXML struct {
	Val   string `xml:"w:val,attr"`
	Color string `xml:"w:color,attr"`
	Fill  string `xml:"w:fill,attr"`
}

// drawingXML is an inline picture (<w:drawing><wp:inline>).
type drawingXML struct {
	XMLName xml.Name  `xml:"w:drawing"`
	Inline  inlineXML `xml:"wp:inline"`
}

type inlineXML struct {
	DistT   int        `xml:"distT,attr"`
	DistB   int        `xml:"distB,attr"`
	DistL   int        `xml:"distL,attr"`
	DistR   int        `xml:"distR,attr"`
	Extent  extentXML  `xml:"wp:extent"`
	DocPr   docPrXML   `xml:"wp:docPr"`
	Graphic graphicXML `xml:"a:graphic"`
}

type extentXML struct {
	Cx int64 `xml:"cx,attr"`
	Cy int64 `xml:"cy,attr"`
}

type docPrXML struct {
	ID    int    `xml:"id,attr"`
	Name  string `xml:"name,attr"`
	Descr string `xml:"descr,attr,omitempty"`
}

type graphicXML struct {
	Data graphicDataXML `xml:"a:graphicData"`
}

type graphicDataXML struct {
	URI string `xml:"uri,attr"`
	Pic picXML `xml:"pic:pic"`
}

type picXML struct {
	NvPicPr  nvPicPrXML  `xml:"pic:nvPicPr"`
	BlipFill blipFillXML `xml:"pic:blipFill"`
	SpPr     spPrXML     `xml:"pic:spPr"`
}

type nvPicPrXML struct {
	CNvPr    docPrXML `xml:"pic:cNvPr"`
	CNvPicPr emptyXML `xml:"pic:cNvPicPr"`
}

type blipFillXML struct {
	Blip    blipXML    `xml:"a:blip"`
	Stretch stretchXML `xml:"a:stretch"`
}

type blipXML struct {
	Embed string `xml:"r:embed,attr"`
}

type stretchXML struct {
	FillRect emptyXML `xml:"a:fillRect"`
}

type spPrXML struct {
	Xfrm xfrmXML `xml:"a:xfrm"`
	Geom geomXML `xml:"a:prstGeom"`
}

type xfrmXML struct {
	Off offXML    `xml:"a:off"`
	Ext extentXML `xml:"a:ext"`
}

type offXML struct {
	X int64 `xml:"x,attr"`
	Y int64 `xml:"y,attr"`
}

type geomXML struct {
	Prst  string   `xml:"prst,attr"`
	AvLst emptyXML `xml:"a:avLst"`
}

// sectPrXML sets the A4 page, margins and the footer reference.
type sectPrXML struct {
	Footer footerRefXML `xml:"w:footerReference"`
	PgSz   pgSzXML      `xml:"w:pgSz"`
	PgMar  pgMarXML     `xml:"w:pgMar"`
}

type footerRefXML struct {
	Type string `xml:"w:type,attr"`
	ID   string `xml:"r:id,attr"`
}

type pgSzXML struct {
	W int `xml:"w:w,attr"`
	H int `xml:"w:h,attr"`
}

type pgMarXML struct {
	Top    int `xml:"w:top,attr"`
	Right  int `xml:"w:right,attr"`
	Bottom int `xml:"w:bottom,attr"`
	Left   int `xml:"w:left,attr"`
	Header int `xml:"w:header,attr"`
	Footer int `xml:"w:footer,attr"`
	Gutter int `xml:"w:gutter,attr"`
}
