// Command geodist 从 CSV 读取经纬度点集，输出距离矩阵、阈值命中下标或位移结果。
//
// 输入每行一个点 "lat,lon"（度），空行与以 # 开头的行被忽略。
package main

import (
	"fmt"
	"os"
)

// version 在构建时通过 -ldflags "-X main.version=..." 注入。
var version = "dev"

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "geodist:", err)
		os.Exit(1)
	}
}
