package pipeline

import (
	"context"
	"fmt"
	"strings"

	"billops/internal/log"
	"billops/internal/sheets"
	"billops/internal/util"
)

const (
	invoiceDeciders  = "디싸이더스"
	invoiceAdproject = "애드프로젝트"
	chatListMarker   = "채팅진행건리스트"
	expertChannel    = "엑스퍼"
)

// decidersSenders maps caller IDs to the brand that sends from them.
var decidersSenders = map[string]string{
	"18005073": "엑스퍼",
	"16610581": "스마트웰컴",
	"16881635": "바이오숨",
}

// invoiceForSender bills 엑스퍼 to 디싸이더스 and everything else, unknown
// numbers included, to 애드프로젝트.
func invoiceForSender(sender string) (invoice string, known bool) {
	brand, known := decidersSenders[sender]
	if brand == expertChannel {
		return invoiceDeciders, true
	}
	return invoiceAdproject, known
}

type decidersTally struct {
	messages map[string]*messageCounts
	chats    map[string]int
	unknown  map[string]int
}

func newDecidersTally() *decidersTally {
	return &decidersTally{
		messages: map[string]*messageCounts{invoiceDeciders: {}, invoiceAdproject: {}},
		chats:    map[string]int{},
		unknown:  map[string]int{},
	}
}

func (t *decidersTally) addHistory(tbl *sheets.Table) {
	for _, row := range tbl.Rows {
		if tbl.Get(row, "발송상태") != delivered {
			continue
		}
		sender := util.PhoneKey(tbl.Get(row, "발신번호"))
		inv, known := invoiceForSender(sender)
		if !known && sender != "" {
			t.unknown[sender]++
		}
		t.messages[inv].count(tbl.Get(row, "문자유형"))
	}
}

// addChats counts Kakao chats: the 엑스퍼 channel belongs to 디싸이더스, every
// other channel to 애드프로젝트.
func (t *decidersTally) addChats(tbl *sheets.Table) bool {
	channelCol, ok := tbl.Find("채널명", "채널")
	if !ok {
		return false
	}
	typeCol, ok := tbl.Find("채팅유형", "유형")
	if !ok {
		return false
	}
	for _, row := range tbl.Rows {
		if tbl.Get(row, typeCol) != "카카오" {
			continue
		}
		if tbl.Get(row, channelCol) == expertChannel {
			t.chats[invoiceDeciders]++
		} else {
			t.chats[invoiceAdproject]++
		}
	}
	return true
}

func (s *ProcessingService) processDeciders(ctx context.Context, j job) ([]string, error) {
	ups, err := s.uploads(j.company.Name, 0)
	if err != nil {
		return nil, err
	}

	tally := newDecidersTally()
	histories := 0
	for _, f := range ups {
		isChat := strings.Contains(f.Name, chatListMarker)
		if !isChat && !util.ContainsAny(f.Name, "발송이력", "발송", "이력") {
			continue
		}
		rows, err := sheets.ReadFile(f.Path)
		if err != nil {
			return nil, err
		}
		if isChat {
			tbl, err := sheets.NewTable(rows)
			if err != nil || !tally.addChats(tbl) {
				j.logger.WarnContext(ctx, "chat list without channel columns", "file", f.Name)
			}
			continue
		}
		tbl, err := sheets.NewTable(rows, "발송상태", "문자유형", "발신번호")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		tally.addHistory(tbl)
		histories++
	}
	if histories == 0 {
		return nil, fmt.Errorf("%s: no send history upload: %w", j.company.Name, ErrInputMissing)
	}
	for sender, n := range tally.unknown {
		j.logger.WarnContext(ctx, "unknown sender billed to "+invoiceAdproject, "sender", sender, "messages", n)
	}

	targets := []string{invoiceDeciders, invoiceAdproject}
	var produced []string
	for i, inv := range targets {
		tpl, err := s.template(ctx, j, i)
		if err != nil {
			return produced, err
		}
		name, err := s.decidersInvoice(tpl, j, inv, *tally.messages[inv], tally.chats[inv])
		if err != nil {
			return produced, err
		}
		j.logger.InfoContext(ctx, "invoice written", log.FieldFile, name, "chats", tally.chats[inv])
		produced = append(produced, name)
	}
	return produced, nil
}

func (s *ProcessingService) decidersInvoice(tpl string, j job, inv string, counts messageCounts, chats int) (string, error) {
	iv, err := openInvoice(tpl, j.month)
	if err != nil {
		return "", err
	}
	defer iv.Close()

	if err := iv.stamp(); err != nil {
		return "", err
	}
	cells := map[string]any{
		"D22": counts.SMS,
		"D23": counts.LMS,
		"D24": counts.MMS,
		"D25": counts.TALK,
	}
	if chats > 0 {
		cells["D14"] = chats
	}
	if err := iv.setAll(sheetDetail, cells); err != nil {
		return "", err
	}

	name := invoiceName(j.month, inv+"_상담솔루션 청구내역서")
	if err := iv.saveAs(s.output(name)); err != nil {
		return "", err
	}
	return name, nil
}
