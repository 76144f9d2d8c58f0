package output

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
)

// PrintJSON 以缩进JSON输出（对外导出）
func PrintJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// PrintError 输出错误信息（对外导出）
func PrintError(err error) {
	color.Red("错误: %v", err)
}

// PrintSuccess 输出成功信息（对外导出）
func PrintSuccess(format string, args ...interface{}) {
	color.Green(format, args...)
}
