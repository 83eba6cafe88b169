package script

// 静态助记符表：mnemonic → 参数个数。进程启动时构建一次，只读。
// 参数一律为 4 位十进制定宽，多参以 ':' 分隔；个数仅由助记符决定，
// 分词器查表而不从内容推断结构。
var commandArgs = map[string]int{
	"AE+": 0,
	"AM+": 2,
	"AM-": 1,
	"AMJ": 2,
	"ANP": 3,
	"BOA": 1,
	"BSL": 1,
	"CAT": 0,
	"CIL": 0,
	"CLO": 0,
	"CLR": 0,
	"CMP": 3,
	"CMU": 1,
	"CNP": 3,
	"CPS": 0,
	"CRE": 0,
	"CSS": 0,
	"DNA": 1,
	"DNP": 1,
	"ECJ": 2,
	"END": 0,
	"EQ+": 1,
	"EQ-": 1,
	"ESC": 0,
	"EVE": 1,
	"FAC": 1,
	"FAI": 1,
	"FAO": 1,
	"FL+": 1,
	"FL-": 1,
	"FLA": 0,
	"FLJ": 2,
	"FMU": 0,
	"FOB": 2,
	"FOM": 1,
	"FON": 2,
	"FRE": 0,
	"GIT": 1,
	"HMC": 0,
	"INI": 0,
	"INP": 3,
	"IT+": 1,
	"IT-": 1,
	"ITJ": 2,
	"KEY": 0,
	"LDP": 0,
	"LI+": 1,
	"ML+": 1,
	"MLP": 0,
	"MM0": 0,
	"MNA": 0,
	"MNP": 4,
	"MOV": 2,
	"MP+": 1,
	"MPJ": 1,
	"MS2": 0,
	"MS3": 0,
	"MSG": 0,
	"MYB": 1,
	"MYD": 1,
	"NCJ": 2,
	"NOD": 0,
	"NUM": 1,
	"PRI": 0,
	"PS+": 2,
	"QUA": 1,
	"RMU": 0,
	"SAT": 0,
	"SIL": 1,
	"SK+": 1,
	"SK-": 1,
	"SKJ": 2,
	"SLP": 0,
	"SMC": 0,
	"SMP": 2,
	"SNP": 4,
	"SOU": 1,
	"SPS": 0,
	"SSS": 1,
	"STC": 0,
	"SVP": 0,
	"TAM": 3,
	"TRA": 4,
	"TUR": 0,
	"UNI": 1,
	"UNJ": 1,
	"WAI": 1,
	"WAS": 0,
	"XX1": 1,
	"YNJ": 1,
	"ZAM": 0,
}

// Arity 返回助记符的参数个数；未登记的助记符返回 ok=false。
func Arity(mnemonic string) (int, bool) {
	n, ok := commandArgs[mnemonic]
	return n, ok
}

// 消息框族：打开消息框的命令。框内的可显示文本即对白。
func isMessageOpen(m string) bool {
	switch m {
	case "MSG", "MS2", "MS3":
		return true
	}
	return false
}

// 事件终止/离场命令：脚本上下文结束，消息框随之关闭。
// CLO 显式关框但不结束事件，同样终止对白上下文。
func isBoxClose(m string) bool {
	switch m {
	case "END", "ESC", "EVE", "TRA", "CLO":
		return true
	}
	return false
}

// 立绘编号 → 说话者名（交换文件的参考元信息）。
// 0 为无立绘（窄框宽度恢复），记作 NP。
var faceNames = map[int]string{
	0:  "NP",
	1:  "SueSmile",
	2:  "SueFrown",
	3:  "SueAngry",
	4:  "SueHurt",
	5:  "BalrogNormal",
	6:  "TorokoNormal",
	7:  "King",
	8:  "TorokoAngry",
	9:  "Jack",
	10: "Kazuma",
	11: "TorokoRage",
	12: "Igor",
	13: "Jenka",
	14: "BalrogSmile",
	15: "MiseryNormal",
	16: "MiserySmile",
	17: "BoosterHurt",
	18: "BoosterNormal",
	19: "CurlySmile",
	20: "CurlyFrown",
	21: "Doctor",
	22: "Momorin",
	23: "BalrogHurt",
	24: "BrokenRobot",
	25: "CurlyUnknown",
	26: "MiseryAngry",
	27: "HumanSue",
	28: "Itoh",
	29: "Ballos",
}

// FaceName 返回立绘编号对应的说话者名；未知编号退化为数字形式。
func FaceName(n int) string {
	if s, ok := faceNames[n]; ok {
		return s
	}
	// 未登记的立绘沿用定宽数字形式，保持可读且无损
	return "FAC" + pad4(n)
}
