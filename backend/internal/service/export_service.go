package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"hwmun/backend/internal/access"
	"hwmun/backend/internal/model"
	"hwmun/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

// ExportService 导出业务接口
// 导出内容以 bytes.Buffer 返回，由 Handler 设置响应头后写出
type ExportService interface {
	// ExportSeats 名额分配总表：每校一行，每轮每会场一列
	ExportSeats(ctx context.Context, p *access.Principal) (*bytes.Buffer, string, error)
	// ExportReservationCalendar 学校住宿预订日历，每间房一个事件
	ExportReservationCalendar(ctx context.Context, p *access.Principal, school string) (*bytes.Buffer, string, error)
	// ExportRepresentatives 代表名单；leadersOnly 时只导出领队
	ExportRepresentatives(ctx context.Context, p *access.Principal, leadersOnly bool) (*bytes.Buffer, string, error)
	// ExportReservations 全部学校的住宿预订
	ExportReservations(ctx context.Context, p *access.Principal) (*bytes.Buffer, string, error)
	// ExportBillings 全部学校当前轮次的账单，每个条目一行
	ExportBillings(ctx context.Context, p *access.Principal) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportSeats — 名额分配总表
// ═══════════════════════════════════════════════════════════
//
// 表头：| 学校 | 类型 | 阶段 | 第1轮 会场A | 第1轮 会场B | ... | 第2轮 会场A | ... | 合计 |
// 只为至少一所学校持有名额的 (轮次, 会场) 生成列

func (s *exportService) ExportSeats(ctx context.Context, p *access.Principal) (*bytes.Buffer, string, error) {
	if !p.IsStaff() {
		return nil, "", ErrForbidden
	}

	// 1. 查询数据
	schools, err := s.repo.School.List(ctx, "")
	if err != nil {
		s.logger.Error("查询学校列表失败", zap.Error(err))
		return nil, "", err
	}
	rows, err := s.repo.Seat.ListAll(ctx)
	if err != nil {
		s.logger.Error("查询名额失败", zap.Error(err))
		return nil, "", err
	}
	cat := newCatalog(s.repo.Session)
	sessions, err := cat.All(ctx)
	if err != nil {
		s.logger.Error("查询会场目录失败", zap.Error(err))
		return nil, "", err
	}

	// 2. 构建索引与列定义
	type column struct {
		round   string
		session string
	}
	index := make(map[string]model.SeatMap)
	used := make(map[column]bool)
	for _, r := range rows {
		if index[r.SchoolID] == nil {
			index[r.SchoolID] = model.SeatMap{}
		}
		if index[r.SchoolID][r.Round] == nil {
			index[r.SchoolID][r.Round] = map[string]int{}
		}
		index[r.SchoolID][r.Round][r.SessionID] = r.Count
		used[column{r.Round, r.SessionID}] = true
	}

	order := make(map[string]int, len(sessions))
	for i, sess := range sessions {
		order[sess.ID] = i
	}
	var columns []column
	for c := range used {
		columns = append(columns, c)
	}
	sort.Slice(columns, func(i, j int) bool {
		if columns[i].round != columns[j].round {
			return columns[i].round < columns[j].round
		}
		oi, iok := order[columns[i].session]
		oj, jok := order[columns[j].session]
		if iok != jok {
			return iok
		}
		if oi != oj {
			return oi < oj
		}
		return columns[i].session < columns[j].session
	})

	// 3. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "名额分配"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 28)
	f.SetColWidth(sheetName, "B", "C", 16)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})

	f.SetCellValue(sheetName, cell("A", 1), "学校")
	f.SetCellValue(sheetName, cell("B", 1), "类型")
	f.SetCellValue(sheetName, cell("C", 1), "阶段")
	for i, c := range columns {
		f.SetCellValue(sheetName, cell(colName(3+i), 1), fmt.Sprintf("第%s轮 %s", c.round, cat.Name(ctx, c.session)))
	}
	totalCol := colName(3 + len(columns))
	f.SetCellValue(sheetName, cell(totalCol, 1), "合计")
	f.SetCellStyle(sheetName, "A1", cell(totalCol, 1), headerStyle)

	for i, school := range schools {
		row := i + 2
		seats := index[school.ID]
		f.SetCellValue(sheetName, cell("A", row), school.Name)
		f.SetCellValue(sheetName, cell("B", row), string(school.Type))
		f.SetCellValue(sheetName, cell("C", row), school.Stage)
		total := 0
		for j, c := range columns {
			n := seats.Get(c.round, c.session)
			total += n
			f.SetCellValue(sheetName, cell(colName(3+j), row), n)
		}
		f.SetCellValue(sheetName, cell(totalCol, row), total)
	}

	// 4. 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("名额分配_%s.xlsx", time.Now().Format("20060102"))
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// ExportReservationCalendar — 住宿预订日历
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportReservationCalendar(ctx context.Context, p *access.Principal, schoolID string) (*bytes.Buffer, string, error) {
	if !p.CanManageSchool(schoolID) {
		return nil, "", ErrForbidden
	}
	school, err := loadSchool(ctx, s.repo, s.logger, schoolID)
	if err != nil {
		return nil, "", err
	}
	reservations, err := s.repo.Reservation.ListBySchool(ctx, schoolID)
	if err != nil {
		s.logger.Error("查询住宿预订失败", zap.Error(err))
		return nil, "", err
	}
	hotels, err := s.repo.Hotel.List(ctx)
	if err != nil {
		s.logger.Error("查询酒店列表失败", zap.Error(err))
		return nil, "", err
	}
	hotelByID := make(map[string]model.Hotel, len(hotels))
	for _, h := range hotels {
		hotelByID[h.ID] = h
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//HWMUN//Reservations//CN")
	cal.SetName(school.Name + " 住宿预订")

	stamp := time.Now()
	for _, r := range reservations {
		event := cal.AddEvent(r.ID + "@hwmun")
		event.SetDtStampTime(stamp)
		event.SetCreatedTime(r.CreatedAt)
		event.SetAllDayStartAt(r.CheckIn)
		event.SetAllDayEndAt(r.CheckOut)

		summary := r.HotelID
		if h, ok := hotelByID[r.HotelID]; ok {
			summary = fmt.Sprintf("%s（%s）", h.Name, h.Type)
			event.SetLocation(h.Name)
		}
		event.SetSummary(summary)
		if r.RoomshareSchool != "" && r.RoomshareState == model.RoomshareAccepted {
			event.SetDescription("拼房学校：" + r.RoomshareSchool)
		}
	}

	buf := bytes.NewBufferString(cal.Serialize())
	filename := fmt.Sprintf("reservations_%s.ics", schoolID)
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// 名单类导出：代表、领队、住宿、账单（管理员）
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportRepresentatives(ctx context.Context, p *access.Principal, leadersOnly bool) (*bytes.Buffer, string, error) {
	if !p.HasAccess(access.Admin) {
		return nil, "", ErrForbidden
	}
	reps, err := s.repo.Representative.List(ctx, "")
	if err != nil {
		s.logger.Error("查询代表名单失败", zap.Error(err))
		return nil, "", err
	}
	names, err := s.schoolNames(ctx)
	if err != nil {
		return nil, "", err
	}
	cat := newCatalog(s.repo.Session)

	rows := make([][]interface{}, 0, len(reps))
	for _, r := range reps {
		if leadersOnly && !r.IsLeader {
			continue
		}
		rows = append(rows, []interface{}{
			flagText(r.IsLeader, "领队"),
			flagText(r.Withdraw, "退会"),
			nameOr(names, r.SchoolID),
			cat.Name(ctx, r.SessionID),
			r.Round,
			r.Name,
			r.Note,
		})
	}

	title, prefix := "代表名单", "代表名单"
	if leadersOnly {
		title, prefix = "领队名单", "领队名单"
	}
	return s.writeTable(title, prefix,
		[]string{"领队标记", "退会标记", "学校", "会场", "轮次", "姓名", "备注"}, rows)
}

func (s *exportService) ExportReservations(ctx context.Context, p *access.Principal) (*bytes.Buffer, string, error) {
	if !p.HasAccess(access.Admin) {
		return nil, "", ErrForbidden
	}
	reservations, err := s.repo.Reservation.ListAll(ctx)
	if err != nil {
		s.logger.Error("查询住宿预订失败", zap.Error(err))
		return nil, "", err
	}
	names, err := s.schoolNames(ctx)
	if err != nil {
		return nil, "", err
	}
	hotels, err := s.repo.Hotel.List(ctx)
	if err != nil {
		s.logger.Error("查询酒店列表失败", zap.Error(err))
		return nil, "", err
	}
	hotelByID := make(map[string]model.Hotel, len(hotels))
	for _, h := range hotels {
		hotelByID[h.ID] = h
	}

	rows := make([][]interface{}, 0, len(reservations))
	for _, r := range reservations {
		h := hotelByID[r.HotelID]
		share := ""
		if r.RoomshareState == model.RoomshareAccepted {
			share = nameOr(names, r.RoomshareSchool)
		}
		rows = append(rows, []interface{}{
			nameOr(names, r.SchoolID),
			h.Name,
			h.Type,
			r.CheckIn.Format("2006-01-02"),
			r.CheckOut.Format("2006-01-02"),
			share,
		})
	}
	return s.writeTable("住宿预订", "住宿预订",
		[]string{"学校", "酒店", "房型", "入住日期", "退房日期", "拼房学校"}, rows)
}

func (s *exportService) ExportBillings(ctx context.Context, p *access.Principal) (*bytes.Buffer, string, error) {
	if !p.HasAccess(access.Admin) {
		return nil, "", ErrForbidden
	}
	schools, err := s.repo.School.List(ctx, "")
	if err != nil {
		s.logger.Error("查询学校列表失败", zap.Error(err))
		return nil, "", err
	}
	seatRows, err := s.repo.Seat.ListAll(ctx)
	if err != nil {
		s.logger.Error("查询名额失败", zap.Error(err))
		return nil, "", err
	}
	reservations, err := s.repo.Reservation.ListAll(ctx)
	if err != nil {
		s.logger.Error("查询住宿预订失败", zap.Error(err))
		return nil, "", err
	}
	b, err := newBiller(ctx, s.repo)
	if err != nil {
		s.logger.Error("加载计费目录失败", zap.Error(err))
		return nil, "", err
	}

	seats := make(map[string][]model.SchoolSeat)
	for _, r := range seatRows {
		seats[r.SchoolID] = append(seats[r.SchoolID], r)
	}
	bySchool := make(map[string][]model.Reservation)
	for _, r := range reservations {
		bySchool[r.SchoolID] = append(bySchool[r.SchoolID], r)
	}

	rows := make([][]interface{}, 0)
	for i := range schools {
		school := &schools[i]
		round := billingRound(school)
		seatMap := model.NewSeatMap(seats[school.ID])
		for _, it := range b.items(seatMap[round], bySchool[school.ID], round) {
			rows = append(rows, []interface{}{school.Name, it.Type, it.Name, it.Amount, it.Price, it.Sum})
		}
	}
	return s.writeTable("账单", "账单",
		[]string{"学校", "类别", "项目", "数量/天数", "单价", "总价"}, rows)
}

// schoolNames 学校 ID → 名称
func (s *exportService) schoolNames(ctx context.Context) (map[string]string, error) {
	schools, err := s.repo.School.List(ctx, "")
	if err != nil {
		s.logger.Error("查询学校列表失败", zap.Error(err))
		return nil, err
	}
	names := make(map[string]string, len(schools))
	for _, sc := range schools {
		names[sc.ID] = sc.Name
	}
	return names, nil
}

// writeTable 单工作表导出：首行表头，其余按行写入
func (s *exportService) writeTable(sheetName, prefix string, header []string, rows [][]interface{}) (*bytes.Buffer, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	for i, h := range header {
		f.SetCellValue(sheetName, cell(colName(i), 1), h)
	}
	f.SetCellStyle(sheetName, "A1", cell(colName(len(header)-1), 1), headerStyle)
	f.SetColWidth(sheetName, "A", colName(len(header)-1), 16)

	for i, row := range rows {
		if err := f.SetSheetRow(sheetName, cell("A", i+2), &row); err != nil {
			s.logger.Error("写入 Excel 行失败", zap.Int("row", i+2), zap.Error(err))
			return nil, "", ErrExportGenerateFail
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	return buf, fmt.Sprintf("%s_%s.xlsx", prefix, time.Now().Format("20060102")), nil
}

func flagText(v bool, text string) string {
	if v {
		return text
	}
	return ""
}

func nameOr(names map[string]string, id string) string {
	if n, ok := names[id]; ok {
		return n
	}
	return id
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
